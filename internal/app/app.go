// Package app wires configuration, storage, the tracker and the chat layer
// into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fenixbot/internal/bot"
	"fenixbot/internal/config"
	"fenixbot/internal/eventbus"
	"fenixbot/internal/feed"
	"fenixbot/internal/registry"
	rtsup "fenixbot/internal/runtime/supervisor"
	"fenixbot/internal/storage"
	"fenixbot/internal/tracker"
	kit "fenixbot/internal/transport"
	telegram "fenixbot/internal/transport/telegram/adapter"
	logx "fenixbot/pkg/logx"
)

type Option func(*options)

type options struct {
	adapter kit.Adapter
	fetcher tracker.Fetcher
}

// WithAdapter replaces the Telegram adapter.
func WithAdapter(a kit.Adapter) Option { return func(o *options) { o.adapter = a } }

// WithFetcher replaces the feed client.
func WithFetcher(f tracker.Fetcher) Option { return func(o *options) { o.fetcher = f } }

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	reg   *registry.Registry

	tracker *tracker.Tracker
	svc     *tracker.Service
	adapter kit.Adapter
	bot     *bot.Bot

	messages chan kit.Message
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	ad := o.adapter
	if ad == nil {
		tc, err := mapTelegramConfig(cfg)
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(tc, log)
		if err != nil {
			return nil, err
		}
		ad = tg
	}

	store, err := OpenStorage(cfg, log)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	lctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	snap, found, err := store.TryLoad(lctx)
	cancel()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if found {
		reg.Restore(snap)
		appLog.Info("registry restored", logx.Int("courses", reg.Len()), logx.Int("groups", len(snap.Groups)))
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fc, err := mapFeedConfig(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		fetcher = feed.New(fc, log.With(logx.String("comp", "feed")))
	}

	pol, svcCfg, err := mapTrackerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := eventbus.New()
	tr := tracker.New(tracker.Deps{
		Registry: reg,
		Fetcher:  fetcher,
		Saver:    store,
		Bus:      bus,
		Log:      log,
	}, pol)
	svc := tracker.NewService(tr, svcCfg, log)

	b := bot.New(mapBotConfig(cfg), bot.Deps{
		Adapter:  ad,
		Registry: reg,
		Tracker:  tr,
		Saver:    store,
		Bus:      bus,
		Log:      log,
	})

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return config.Validate(c) })

	return &App{
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		reg:      reg,
		tracker:  tr,
		svc:      svc,
		adapter:  ad,
		bot:      b,
		messages: make(chan kit.Message, 256),
	}, nil
}

func (a *App) Registry() *registry.Registry { return a.reg }

func (a *App) Tracker() *tracker.Tracker { return a.tracker }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.messages); err != nil {
		return err
	}
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := mu.UpdateMenuCommands(mctx, a.bot.MenuCommands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
		cancel()
	}

	a.sup.Go("bot", func(c context.Context) error {
		return a.bot.Run(c, a.messages)
	})

	if err := a.svc.Start(a.sup.Context()); err != nil {
		return err
	}

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(32)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Int("courses", a.reg.Len()),
		logx.Time("next_update", a.svc.Next()),
	)
	return nil
}

// applyConfig re-applies the hot-reloadable parts of a new config: logging,
// the cycle policy, the schedule and the send rate. Feed, storage and token
// changes need a restart.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(next))

	pol, svcCfg, err := mapTrackerConfig(next)
	if err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else if err := a.svc.Apply(svcCfg, pol); err != nil {
		a.log.Warn("schedule apply failed; keeping previous", logx.Err(err))
	}

	a.bot.Notifier().SetRate(mapBotConfig(next).RatePerSec)

	if prev != nil {
		var restart []string
		if prev.Feed != next.Feed {
			restart = append(restart, "feed")
		}
		if prev.Storage != next.Storage {
			restart = append(restart, "storage")
		}
		if prev.Telegram.Token != next.Telegram.Token || prev.Telegram.PollTimeout != next.Telegram.PollTimeout {
			restart = append(restart, "telegram")
		}
		if len(restart) > 0 {
			a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		if took := time.Since(start); took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.svc.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 5*time.Second, func(c context.Context) error {
		err := a.store.Save(c, a.reg.Snapshot())
		return errors.Join(err, a.store.Close())
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

// Package bot is the chat layer: it turns commands into registry and tracker
// calls, and tracker events into group notifications.
package bot

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"fenixbot/internal/course"
	"fenixbot/internal/eventbus"
	"fenixbot/internal/registry"
	rtsup "fenixbot/internal/runtime/supervisor"
	"fenixbot/internal/tracker"
	kit "fenixbot/internal/transport"
	logx "fenixbot/pkg/logx"
)

// Tracker is the part of *tracker.Tracker the bot drives.
type Tracker interface {
	RunCycle(ctx context.Context, group *registry.GroupID) (tracker.Summary, error)
	SyncCourse(ctx context.Context, group registry.GroupID, link string) ([]course.Change, error)
	Policy() tracker.Policy
}

type Config struct {
	RatePerSec     int
	Workers        int
	CommandTimeout time.Duration
}

type Deps struct {
	Adapter  kit.Adapter
	Registry *registry.Registry
	Tracker  Tracker
	Saver    tracker.Saver
	Bus      eventbus.Bus
	Log      logx.Logger
}

type Bot struct {
	cfg      Config
	adapter  kit.Adapter
	reg      *registry.Registry
	tr       Tracker
	saver    tracker.Saver
	bus      eventbus.Bus
	log      logx.Logger
	notifier *Notifier
	cmds     []Command
	byName   map[string]Command
	jobs     chan func(ctx context.Context)
}

func New(cfg Config, d Deps) *Bot {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 2 * time.Minute
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	log := d.Log.With(logx.String("comp", "bot"))
	b := &Bot{
		cfg:      cfg,
		adapter:  d.Adapter,
		reg:      d.Registry,
		tr:       d.Tracker,
		saver:    d.Saver,
		bus:      d.Bus,
		log:      log,
		notifier: NewNotifier(d.Adapter, cfg.RatePerSec, 0, d.Log),
		jobs:     make(chan func(ctx context.Context), 64),
	}
	b.cmds = b.commands()
	b.byName = make(map[string]Command, len(b.cmds))
	for _, c := range b.cmds {
		b.byName[c.Name] = c
	}
	return b
}

func (b *Bot) Notifier() *Notifier { return b.notifier }

// Run dispatches incoming messages and forwards cycle events until ctx is
// done or in is closed.
func (b *Bot) Run(ctx context.Context, in <-chan kit.Message) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(b.log), rtsup.WithCancelOnError(false))

	sup.Go0("notifier", b.notifier.Run)
	if b.bus != nil {
		events, unsub := b.bus.Subscribe(64, tracker.EventCycleCompleted)
		sup.Go0("events", func(c context.Context) {
			defer unsub()
			b.forwardEvents(c, events)
		})
	}
	for i := 0; i < b.cfg.Workers; i++ {
		sup.GoRestart("command.worker."+strconv.Itoa(i), b.worker,
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	b.log.Info("bot started", logx.Int("workers", b.cfg.Workers), logx.Int("commands", len(b.cmds)))

	defer func() {
		b.notifier.Close()
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		b.log.Info("bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-in:
			if !ok {
				return nil
			}
			b.route(ctx, m)
		}
	}
}

func (b *Bot) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-b.jobs:
			job(ctx)
		}
	}
}

func (b *Bot) route(ctx context.Context, m kit.Message) {
	name, args, ok := ParseCommand(m.Text)
	if !ok {
		return
	}
	cmd, ok := b.byName[name]
	if !ok {
		return
	}
	req := &Request{
		Msg:   m,
		Group: registry.GroupID(m.ChatID),
		Name:  name,
		Args:  args,
		Log: b.log.With(
			logx.Int64("chat_id", m.ChatID),
			logx.Int64("from_id", m.FromID),
			logx.String("from", m.FromUsername),
			logx.String("cmd", name),
		),
	}
	job := func(c context.Context) { b.Handle(c, cmd, req) }
	select {
	case b.jobs <- job:
	default:
		_, _ = b.adapter.SendText(ctx, chatOf(m), "Busy, try again in a moment.", nil)
	}
}

// Handle runs one command and sends its reply.
func (b *Bot) Handle(ctx context.Context, cmd Command, req *Request) {
	defer func() {
		if r := recover(); r != nil {
			req.Log.Error("panic in command", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	start := time.Now()
	reply := cmd.handle(ctx, req)
	req.Log.Debug("command handled", logx.Duration("took", time.Since(start)))
	if reply == "" {
		return
	}
	if _, err := b.adapter.SendText(ctx, chatOf(req.Msg), reply, &kit.SendOptions{ParseMode: kit.ParseHTML, DisablePreview: true}); err != nil {
		req.Log.Warn("reply failed", logx.Err(err))
	}
}

func (b *Bot) forwardEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sum, ok := ev.Data.(tracker.Summary)
			if !ok {
				continue
			}
			b.Notify(sum)
		}
	}
}

// Notify queues one message per change in sum to the owning group.
func (b *Bot) Notify(sum tracker.Summary) {
	for _, cc := range sum.Courses {
		to := kit.ChatTarget{ChatID: int64(cc.Group)}
		for _, text := range RenderCourseChanges(cc) {
			b.notifier.Enqueue(to, text)
		}
	}
}

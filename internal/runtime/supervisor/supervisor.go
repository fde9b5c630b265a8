// Package supervisor owns the bot's long-lived goroutines: the Telegram
// long poll, command workers, event fanout and the config watcher. They
// share one context, panics become errors, and flaky loops can be
// restarted with backoff.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	logx "fenixbot/pkg/logx"
)

// healthyRun is how long a restarted goroutine must stay up before its
// backoff starts over from the minimum.
const healthyRun = 30 * time.Second

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	cancelOnErr bool

	mu       sync.Mutex
	firstErr error

	wg       sync.WaitGroup
	waitOnce sync.Once
	done     chan struct{}

	started atomic.Uint64
	active  atomic.Int64
}

type Option func(*Supervisor)

// Counters is a point-in-time view for logs and tests.
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

func WithLogger(log logx.Logger) Option { return func(s *Supervisor) { s.log = log } }

// WithCancelOnError cancels the shared context on the first reported error,
// which brings the whole process down.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func NewSupervisor(parent context.Context, opts ...Option) *Supervisor {
	s := &Supervisor{done: make(chan struct{})}
	s.ctx, s.cancel = context.WithCancel(parent)
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the shared context and returns immediately.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first error any goroutine reported, or nil.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Supervisor) Counters() Counters {
	return Counters{Active: s.active.Load(), Started: s.started.Load()}
}

// Go runs fn once. A non-nil error other than context.Canceled is recorded
// and, with WithCancelOnError, stops everything.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.spawn(name, func() {
		if err := s.call(name, fn); err != nil && !errors.Is(err, context.Canceled) {
			s.record(fmt.Errorf("%s: %w", name, err), true)
		}
	})
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error { fn(ctx); return nil })
}

func (s *Supervisor) spawn(name string, body func()) {
	s.started.Add(1)
	s.active.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		s.log.Debug("goroutine started", logx.String("name", name))
		body()
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *Supervisor) call(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("goroutine panicked",
				logx.String("name", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

// record keeps err if it is the first one. fatal also applies cancelOnErr.
func (s *Supervisor) record(err error, fatal bool) {
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()
	if fatal && s.cancelOnErr {
		s.cancel()
	}
}

// RestartPolicy controls GoRestart. Build it through RestartOption values.
type RestartPolicy struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// MaxRestarts counts restarts, not the first run. Zero or less is unlimited.
	MaxRestarts int
	// StopOnCleanExit ends supervision when fn returns nil.
	StopOnCleanExit bool
	// PublishFirstError records a failure in Err even though fn is restarted.
	PublishFirstError bool
}

type RestartOption func(*RestartPolicy)

func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *RestartPolicy) {
		if min > 0 {
			p.MinBackoff = min
		}
		if max > 0 {
			p.MaxBackoff = max
		}
	}
}

func WithMaxRestarts(n int) RestartOption { return func(p *RestartPolicy) { p.MaxRestarts = n } }

func WithPublishFirstError(enabled bool) RestartOption {
	return func(p *RestartPolicy) { p.PublishFirstError = enabled }
}

// WithStopOnCleanExit defaults to true.
func WithStopOnCleanExit(enabled bool) RestartOption {
	return func(p *RestartPolicy) { p.StopOnCleanExit = enabled }
}

func (p RestartPolicy) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.MinBackoff
	eb.MaxInterval = p.MaxBackoff
	eb.RandomizationFactor = 0.2
	eb.MaxElapsedTime = 0
	var b backoff.BackOff = eb
	if p.MaxRestarts > 0 {
		b = backoff.WithMaxRetries(eb, uint64(p.MaxRestarts))
	}
	return backoff.WithContext(b, ctx)
}

// GoRestart keeps fn running until the context is canceled. Errors and
// panics trigger a restart after an exponential backoff. Giving up after
// MaxRestarts is reported like a Go failure.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	pol := RestartPolicy{
		MinBackoff:      250 * time.Millisecond,
		MaxBackoff:      30 * time.Second,
		StopOnCleanExit: true,
	}
	for _, o := range opts {
		o(&pol)
	}
	if pol.MaxBackoff < pol.MinBackoff {
		pol.MaxBackoff = pol.MinBackoff
	}
	s.spawn(name+".restart", func() { s.restartLoop(name, fn, pol) })
}

func (s *Supervisor) restartLoop(name string, fn func(ctx context.Context) error, pol RestartPolicy) {
	ctx := s.ctx
	b := pol.backoff(ctx)
	for restarts := 0; ; restarts++ {
		began := time.Now()
		err := s.call(name, fn)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		if err == nil {
			if pol.StopOnCleanExit {
				return
			}
			err = errors.New("exited")
		}
		err = fmt.Errorf("%s: %w", name, err)
		if pol.PublishFirstError {
			s.record(err, false)
		}

		if time.Since(began) >= healthyRun {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() == nil {
				s.log.Error("goroutine gave up", logx.String("name", name), logx.Int("restarts", restarts), logx.Err(err))
				s.record(err, true)
			}
			return
		}
		s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Supervisor) GoRestart0(name string, fn func(ctx context.Context), opts ...RestartOption) {
	if fn == nil {
		return
	}
	s.GoRestart(name, func(ctx context.Context) error { fn(ctx); return nil }, opts...)
}

// Stop cancels and then waits like Wait.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every goroutine has returned or ctx ends. It returns
// Err once they have all returned.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

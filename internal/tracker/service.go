package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "fenixbot/pkg/logx"
)

// ServiceConfig is the trigger side of the tracker.
type ServiceConfig struct {
	Schedule string // see ParseSchedule; empty means every Policy.Interval
	Timezone string // IANA name; empty means local
}

// Service fires RunCycle on a cron schedule. It owns no update logic.
type Service struct {
	t      *Tracker
	log    logx.Logger
	parser cron.Parser

	mu    sync.Mutex
	cfg   ServiceConfig
	spec  string
	c     *cron.Cron
	entry cron.EntryID
	ctx   context.Context
}

func NewService(t *Tracker, cfg ServiceConfig, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		t:   t,
		cfg: cfg,
		log: log.With(logx.String("comp", "tracker.service")),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// LoadLocation resolves a timezone name, falling back to local time.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// Start registers the schedule and begins triggering. ctx is passed to
// every cycle the service fires.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	if err := s.startLocked(); err != nil {
		return err
	}
	next := s.c.Entry(s.entry).Next
	s.log.Info("service started", logx.String("spec", s.spec), logx.Time("next", next))
	return nil
}

func (s *Service) startLocked() error {
	loc, err := LoadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	spec, err := s.specLocked()
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	id, err := c.AddFunc(spec, s.fire)
	if err != nil {
		return err
	}
	c.Start()
	s.c, s.entry, s.spec = c, id, spec
	return nil
}

func (s *Service) specLocked() (string, error) {
	raw := strings.TrimSpace(s.cfg.Schedule)
	if raw == "" {
		raw = s.t.Policy().Interval.String()
	}
	ps, err := ParseSchedule(raw)
	if err != nil {
		return "", err
	}
	spec := ps.CronSpec()
	if _, err := s.parser.Parse(spec); err != nil {
		return "", err
	}
	return spec, nil
}

// Stop halts triggering and waits for a fired cycle to return, or for ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	start := time.Now()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Apply swaps the schedule and the tracker policy. The cron is rebuilt only
// when the schedule or timezone changed.
func (s *Service) Apply(cfg ServiceConfig, pol Policy) error {
	if _, err := LoadLocation(cfg.Timezone); err != nil {
		return err
	}
	s.t.SetPolicy(pol)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	spec, err := s.specLocked()
	if err != nil {
		s.cfg = prev
		return err
	}
	if spec == s.spec && strings.TrimSpace(prev.Timezone) == strings.TrimSpace(cfg.Timezone) {
		return nil
	}

	old := s.c
	if err := s.startLocked(); err != nil {
		s.cfg = prev
		return err
	}
	old.Stop()
	s.log.Info("schedule updated", logx.String("spec", s.spec))
	return nil
}

// Next is the next scheduled fire time, zero when stopped.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

func (s *Service) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	sum, err := s.t.RunCycle(ctx, nil)
	switch {
	case errors.Is(err, ErrBusy):
		s.log.Debug("scheduled cycle rejected", logx.Err(err))
	case err != nil:
		s.log.Warn("scheduled cycle failed", logx.Int("changes", sum.Total), logx.Err(err))
	case sum.Skipped != SkipNone:
		s.log.Debug("scheduled cycle skipped", logx.String("reason", string(sum.Skipped)))
	}
}

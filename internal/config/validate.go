package config

import (
	"errors"
	"fmt"
	"strings"

	"fenixbot/internal/tracker"
)

// Validate checks values that decode fine but cannot be used.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.RatePerSec < 0 {
		errs = append(errs, errors.New("telegram.rate_per_sec must be >= 0"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}

	if _, err := ParseDurationField("feed.timeout", cfg.Feed.Timeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Feed.Retries < 0 || cfg.Feed.Retries > 10 {
		errs = append(errs, fmt.Errorf("feed.retries must be within 0..10 (got %d)", cfg.Feed.Retries))
	}

	if s := strings.TrimSpace(cfg.Scheduler.Interval); s != "" {
		if _, err := tracker.ParseSchedule(s); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.interval: %w", err))
		}
	}
	if _, err := ParseDurationField("scheduler.min_interval", cfg.Scheduler.MinInterval); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Scheduler.Quiet().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if _, err := tracker.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "none", "memory":
	case "file", "json", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", d))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", d))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Quiet returns the configured window, 1..9 when both ends are omitted.
func (s SchedulerConfig) Quiet() tracker.QuietHours {
	q := tracker.DefaultPolicy().Quiet
	if s.QuietStart != nil {
		q.Start = *s.QuietStart
	}
	if s.QuietEnd != nil {
		q.End = *s.QuietEnd
	}
	return q
}

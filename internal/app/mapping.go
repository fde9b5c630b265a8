package app

import (
	"strings"
	"time"

	"fenixbot/internal/bot"
	"fenixbot/internal/config"
	"fenixbot/internal/feed"
	"fenixbot/internal/storage"
	"fenixbot/internal/tracker"
	telegram "fenixbot/internal/transport/telegram/adapter"
	logx "fenixbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

func mapBotConfig(cfg *config.Config) bot.Config {
	rate := cfg.Telegram.RatePerSec
	if rate <= 0 {
		rate = 1
	}
	return bot.Config{RatePerSec: rate}
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	timeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, feed.DefaultTimeout)
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{
		BaseURL:   cfg.Feed.BaseURL,
		Timeout:   timeout,
		Retries:   cfg.Feed.Retries,
		UserAgent: cfg.Feed.UserAgent,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

// mapTrackerConfig derives both the cycle policy and the trigger schedule.
// A duration-like interval also feeds Policy.Interval; cron expressions leave
// the default in place.
func mapTrackerConfig(cfg *config.Config) (tracker.Policy, tracker.ServiceConfig, error) {
	sc := cfg.Scheduler
	pol := tracker.DefaultPolicy()

	schedule := strings.TrimSpace(sc.Interval)
	if schedule != "" {
		spec, err := tracker.ParseSchedule(schedule)
		if err != nil {
			return tracker.Policy{}, tracker.ServiceConfig{}, err
		}
		if spec.Kind == tracker.SpecInterval {
			pol.Interval = spec.Every
		}
	}

	minInterval, err := config.ParseDurationOrDefault("scheduler.min_interval", sc.MinInterval, tracker.DefaultMinInterval)
	if err != nil {
		return tracker.Policy{}, tracker.ServiceConfig{}, err
	}
	pol.MinInterval = minInterval

	fetch, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, tracker.DefaultFetchTimeout)
	if err != nil {
		return tracker.Policy{}, tracker.ServiceConfig{}, err
	}
	pol.FetchTimeout = fetch

	loc, err := tracker.LoadLocation(sc.Timezone)
	if err != nil {
		return tracker.Policy{}, tracker.ServiceConfig{}, err
	}
	pol.Location = loc
	pol.Quiet = sc.Quiet()
	if sc.IsolateFailures {
		pol.Isolation = tracker.Isolate
	}

	return pol, tracker.ServiceConfig{Schedule: schedule, Timezone: sc.Timezone}, nil
}

// OpenStorage opens the store configured in cfg.
func OpenStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(sc, log)
}

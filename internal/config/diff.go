package config

import (
	"strings"

	logx "fenixbot/pkg/logx"
)

// SummarizeConfigChange lists the sections that differ and safe fields for
// logging them. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.Token != n.Token || !trimEq(o.PollTimeout, n.PollTimeout) || o.RatePerSec != n.RatePerSec {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", o.Token != n.Token),
			logx.String("telegram.poll_timeout", strings.TrimSpace(n.PollTimeout)),
			logx.Int("telegram.rate_per_sec", n.RatePerSec),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Feed != newCfg.Feed {
		changed = append(changed, "feed")
		attrs = append(attrs,
			logx.String("feed.base_url", strings.TrimSpace(newCfg.Feed.BaseURL)),
			logx.String("feed.timeout", strings.TrimSpace(newCfg.Feed.Timeout)),
			logx.Int("feed.retries", newCfg.Feed.Retries),
		)
	}

	oldS, newS := oldCfg.Scheduler, newCfg.Scheduler
	if !trimEq(oldS.Interval, newS.Interval) || !trimEq(oldS.MinInterval, newS.MinInterval) ||
		oldS.Quiet() != newS.Quiet() || !trimEq(oldS.Timezone, newS.Timezone) || oldS.IsolateFailures != newS.IsolateFailures {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.interval", strings.TrimSpace(newS.Interval)),
			logx.String("scheduler.min_interval", strings.TrimSpace(newS.MinInterval)),
			logx.String("scheduler.quiet", newS.Quiet().String()),
			logx.String("scheduler.timezone", strings.TrimSpace(newS.Timezone)),
			logx.Bool("scheduler.isolate_failures", newS.IsolateFailures),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	return changed, attrs
}

func trimEq(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }

package config

// Config is the on-disk configuration, JSON or YAML.
//
// All durations are Go duration strings (e.g. "500ms", "20s", "30m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Feed      FeedConfig      `json:"feed"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout (default "10s").
	PollTimeout string `json:"poll_timeout"`
	// RatePerSec caps outgoing messages (default 1).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// FeedConfig controls announcement feed fetching.
//
// Example:
//
//	"feed": { "timeout": "20s", "retries": 2 }
type FeedConfig struct {
	BaseURL   string `json:"base_url,omitempty"` // default: https://fenix.tecnico.ulisboa.pt/
	Timeout   string `json:"timeout,omitempty"`
	Retries   int    `json:"retries,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// SchedulerConfig controls update cycles.
//
// Interval accepts anything tracker.ParseSchedule does: "30m", "00:30",
// "*/30 * * * *", "@every 30m".
type SchedulerConfig struct {
	Interval    string `json:"interval,omitempty"`     // default "30m"
	MinInterval string `json:"min_interval,omitempty"` // default "60s"

	// Quiet hours, local clock, [quiet_start, quiet_end). Both omitted means 1..9.
	// Equal values disable the window.
	QuietStart *int `json:"quiet_start,omitempty"`
	QuietEnd   *int `json:"quiet_end,omitempty"`

	Timezone        string `json:"timezone,omitempty"`
	IsolateFailures bool   `json:"isolate_failures,omitempty"`
}

// StorageConfig controls registry persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/fenixbot.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

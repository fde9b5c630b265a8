package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "telegram": {"token": "123:abc", "poll_timeout": "10s"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "feed": {"timeout": "15s", "retries": 2},
  "scheduler": {"interval": "30m", "quiet_start": 0, "quiet_end": 7, "timezone": "UTC"},
  "storage": {"driver": "file", "path": "./data/state.json"}
}`

const sampleYAML = `
telegram:
  token: "123:abc"
logging:
  level: info
  console: true
scheduler:
  interval: "*/15 * * * *"
  isolate_failures: true
storage:
  driver: sqlite
  path: ./data/state.db
  busy_timeout: 5s
`

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.json", []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Feed.Retries != 2 || cfg.Storage.Driver != "file" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if q := cfg.Scheduler.Quiet(); q.Start != 0 || q.End != 7 {
		t.Fatalf("quiet = %+v", q)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Scheduler.Interval != "*/15 * * * *" || !cfg.Scheduler.IsolateFailures || cfg.Storage.BusyTimeout != "5s" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if q := cfg.Scheduler.Quiet(); q.Start != 1 || q.End != 9 {
		t.Fatalf("default quiet = %+v", q)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		name string
		data string
	}{
		"unknown field": {"c.json", `{"telegram": {"token": "x", "owner": 1}}`},
		"trailing data": {"c.json", `{} {}`},
		"bad yaml":      {"c.yml", "telegram: [unclosed"},
		"yaml unknown":  {"c.yaml", "plugins: {}"},
		"yaml two docs": {"c.yaml", "telegram: {}\n---\nlogging: {}"},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.name, []byte(tt.data)); err == nil {
				t.Fatalf("Decode accepted %q", tt.data)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	hour := 24
	cfg := &Config{
		Feed:      FeedConfig{Timeout: "soon", Retries: -1},
		Scheduler: SchedulerConfig{Interval: "whenever", QuietStart: &hour, Timezone: "Nowhere/City"},
		Storage:   StorageConfig{Driver: "sqlite"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted a bad config")
	}
	for _, want := range []string{
		"telegram.token", "feed.timeout", "feed.retries", "scheduler.interval",
		"quiet hours", "scheduler.timezone", "storage.path",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: time.Minute},
		{raw: "0s", want: time.Minute},
		{raw: "45s", want: 45 * time.Second},
		{raw: "-1s", wantErr: true},
		{raw: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x", tt.raw, time.Minute)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDurationOrDefault(%q) err = %v", tt.raw, err)
		}
		var fe *FieldError
		if tt.wantErr && (!errors.As(err, &fe) || fe.Path != "x") {
			t.Fatalf("ParseDurationOrDefault(%q) err = %T, want *FieldError", tt.raw, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg, _ := Decode("c.json", []byte(sampleJSON))
	newCfg, _ := Decode("c.json", []byte(sampleJSON))
	newCfg.Telegram.Token = "456:def"
	newCfg.Scheduler.Interval = "1h"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "telegram,scheduler" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("no attrs for changed sections")
	}
}

func TestManagerReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx := context.Background()

	if m.reload(ctx) {
		t.Fatalf("unchanged file was republished")
	}

	updated := strings.Replace(sampleJSON, `"30m"`, `"45m"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(context.Context, *Config) error { return errors.New("nope") })
	if m.reload(ctx) {
		t.Fatalf("rejected config was published")
	}
	if m.Get().Scheduler.Interval != "30m" {
		t.Fatalf("rejected config was committed")
	}

	m.SetValidator(func(_ context.Context, c *Config) error { return Validate(c) })
	if !m.reload(ctx) {
		t.Fatalf("changed config was not published")
	}
	select {
	case cfg := <-ch:
		if cfg.Scheduler.Interval != "45m" {
			t.Fatalf("published interval = %q", cfg.Scheduler.Interval)
		}
	default:
		t.Fatalf("subscriber got nothing")
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.yaml", []byte("# nothing yet\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

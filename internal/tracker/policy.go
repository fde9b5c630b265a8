package tracker

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultInterval     = 30 * time.Minute
	DefaultMinInterval  = 60 * time.Second
	DefaultFetchTimeout = 20 * time.Second
	DefaultSaveTimeout  = 10 * time.Second
)

// Isolation decides what a failing course does to the rest of a cycle.
type Isolation int

const (
	// Abort stops the cycle at the first failing course.
	Abort Isolation = iota
	// Isolate skips failing courses and keeps going.
	Isolate
)

func (i Isolation) String() string {
	if i == Isolate {
		return "isolate"
	}
	return "abort"
}

func ParseIsolation(s string) (Isolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return Abort, nil
	case "isolate":
		return Isolate, nil
	default:
		return Abort, fmt.Errorf("unknown isolation %q (want abort or isolate)", s)
	}
}

// QuietHours is a local time-of-day window [Start, End) in whole hours.
// Start > End wraps past midnight; Start == End disables the window.
type QuietHours struct {
	Start int
	End   int
}

func (q QuietHours) Enabled() bool { return q.Start != q.End }

// Contains reports whether hour h (0..23) falls inside the window.
func (q QuietHours) Contains(h int) bool {
	switch {
	case q.Start == q.End:
		return false
	case q.Start < q.End:
		return h >= q.Start && h < q.End
	default:
		return h >= q.Start || h < q.End
	}
}

func (q QuietHours) Validate() error {
	if q.Start < 0 || q.Start > 23 || q.End < 0 || q.End > 23 {
		return fmt.Errorf("quiet hours must be within 0..23 (got %d..%d)", q.Start, q.End)
	}
	return nil
}

func (q QuietHours) String() string {
	if !q.Enabled() {
		return "off"
	}
	return fmt.Sprintf("%02d:00-%02d:00", q.Start, q.End)
}

// Policy holds the knobs of RunCycle.
type Policy struct {
	Interval     time.Duration
	MinInterval  time.Duration
	Quiet        QuietHours
	Location     *time.Location // quiet hours clock; nil means time.Local
	FetchTimeout time.Duration  // per course
	SaveTimeout  time.Duration
	Isolation    Isolation
}

func DefaultPolicy() Policy {
	return Policy{
		Interval:     DefaultInterval,
		MinInterval:  DefaultMinInterval,
		Quiet:        QuietHours{Start: 1, End: 9},
		FetchTimeout: DefaultFetchTimeout,
		SaveTimeout:  DefaultSaveTimeout,
		Isolation:    Abort,
	}
}

// withDefaults fills zero values. A negative MinInterval disables the
// re-entry check.
func (p Policy) withDefaults() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.MinInterval == 0 {
		p.MinInterval = DefaultMinInterval
	}
	if p.MinInterval < 0 {
		p.MinInterval = 0
	}
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = DefaultFetchTimeout
	}
	if p.SaveTimeout <= 0 {
		p.SaveTimeout = DefaultSaveTimeout
	}
	if p.Location == nil {
		p.Location = time.Local
	}
	return p
}

func (p Policy) quiet(now time.Time) bool {
	return p.Quiet.Contains(now.In(p.Location).Hour())
}

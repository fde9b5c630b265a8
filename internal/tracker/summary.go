package tracker

import (
	"time"

	"fenixbot/internal/course"
	"fenixbot/internal/registry"
)

type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipQuietHours SkipReason = "quiet_hours"
	SkipTooSoon    SkipReason = "too_soon"
)

// CourseChanges is the change list of one course in one cycle.
type CourseChanges struct {
	Group    registry.GroupID
	Link     string
	Name     string
	Years    string
	Semester string
	Changes  []course.Change
}

// Summary describes one RunCycle call.
type Summary struct {
	Started  time.Time
	Finished time.Time
	Skipped  SkipReason

	// Only courses with at least one change are listed.
	Courses []CourseChanges
	Total   int
	Checked int
	Failed  int

	SaveErr error
}

func (s Summary) Ran() bool { return s.Skipped == SkipNone && !s.Started.IsZero() }

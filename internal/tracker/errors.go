package tracker

import (
	"errors"
	"fmt"
	"strings"

	"fenixbot/internal/registry"
)

// RejectedError is returned when a cycle cannot start because another one
// is in flight.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "update rejected: " + e.Reason }

var ErrBusy = &RejectedError{Reason: "an update is already running"}

// CourseFailure is one course that could not be refreshed.
type CourseFailure struct {
	Group registry.GroupID
	Name  string
	Link  string
	Err   error
}

func (f *CourseFailure) Error() string {
	return fmt.Sprintf("group %d course %s: %v", f.Group, f.Name, f.Err)
}

func (f *CourseFailure) Unwrap() error { return f.Err }

// CycleError reports the courses that failed during a cycle. In abort mode
// it holds exactly one failure.
type CycleError struct {
	Failures []*CourseFailure
	Aborted  bool
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	verb := "failed"
	if e.Aborted {
		verb = "aborted"
	}
	return fmt.Sprintf("update cycle %s: %s", verb, strings.Join(parts, "; "))
}

func (e *CycleError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}

// Joined folds the failures into one error with errors.Join.
func (e *CycleError) Joined() error { return errors.Join(e.Unwrap()...) }

// PersistError is returned when the registry could not be saved. Changes
// were already applied in memory; the next save retries.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "save registry: " + e.Err.Error() }

func (e *PersistError) Unwrap() error { return e.Err }

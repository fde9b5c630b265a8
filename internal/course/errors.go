package course

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLink matches any *InvalidLinkError via errors.Is.
	ErrInvalidLink = errors.New("invalid course link")
	// ErrParse matches any *ParseError via errors.Is.
	ErrParse = errors.New("parse error")
)

// InvalidLinkError reports a course link that does not follow ExpectedLinkFormat.
type InvalidLinkError struct {
	Link   string
	Reason string
}

func (e *InvalidLinkError) Error() string {
	return fmt.Sprintf("invalid course link %q: %s (expected format: %s)", e.Link, e.Reason, ExpectedLinkFormat)
}

func (e *InvalidLinkError) Is(target error) bool { return target == ErrInvalidLink }

// Hint returns the expected link format, suitable for showing to users.
func (e *InvalidLinkError) Hint() string { return ExpectedLinkFormat }

// ParseError reports a malformed feed document or item field.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

package model

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// FieldError names one violated input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationError is the structured rejection returned for malformed input.
// Fields lists every violation found, not only the first.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f)
	}
	return out
}

// Violation appends a FieldError to an accumulated multierr value.
func Violation(errs error, field, format string, args ...any) error {
	return multierr.Append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// AsValidationError converts an accumulated multierr value into a
// *ValidationError. Nil stays nil; non-field errors are kept with an empty
// field name.
func AsValidationError(errs error) error {
	if errs == nil {
		return nil
	}
	ve := &ValidationError{}
	for _, err := range multierr.Errors(errs) {
		var nested *ValidationError
		if errors.As(err, &nested) {
			ve.Fields = append(ve.Fields, nested.Fields...)
			continue
		}
		var fe *FieldError
		if errors.As(err, &fe) {
			ve.Fields = append(ve.Fields, fe)
			continue
		}
		ve.Fields = append(ve.Fields, &FieldError{Reason: err.Error()})
	}
	return ve
}

// Validate checks the grid configuration.
func (g SlotGrid) Validate() error {
	var errs error
	if g.StartHour < 0 || g.StartHour > 23 {
		errs = Violation(errs, "startHour", "must be in 0..23, got %d", g.StartHour)
	}
	if g.EndHour < 1 || g.EndHour > 24 {
		errs = Violation(errs, "endHour", "must be in 1..24, got %d", g.EndHour)
	}
	if g.EndHour <= g.StartHour {
		errs = Violation(errs, "endHour", "must be after startHour (%d <= %d)", g.EndHour, g.StartHour)
	}
	switch g.Interval {
	case 15, 30, 60:
	default:
		errs = Violation(errs, "interval", "must be 15, 30 or 60 minutes, got %d", g.Interval)
	}
	return AsValidationError(errs)
}

// ValidateEvents checks every event and reports all violations at once.
// Field names are indexed, e.g. "events[3].end".
func ValidateEvents(events []Event) error {
	var errs error
	seen := make(map[string]int, len(events))
	for i, ev := range events {
		prefix := fmt.Sprintf("events[%d]", i)
		if ev.ID == "" {
			errs = Violation(errs, prefix+".id", "must not be empty")
		} else if strings.HasPrefix(ev.ID, OverflowIDPrefix) {
			errs = Violation(errs, prefix+".id", "prefix %q is reserved for overflow markers", OverflowIDPrefix)
		} else if j, dup := seen[ev.ID]; dup {
			errs = Violation(errs, prefix+".id", "duplicate id %q (also events[%d])", ev.ID, j)
		} else {
			seen[ev.ID] = i
		}
		if !ev.Day.Valid() {
			errs = Violation(errs, prefix+".day", "must be in 0..6, got %d", int(ev.Day))
		}
		if ev.End.Minutes() <= ev.Start.Minutes() {
			errs = Violation(errs, prefix+".end", "must be after start (%s <= %s)", ev.End, ev.Start)
		}
	}
	return AsValidationError(errs)
}

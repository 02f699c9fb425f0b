package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time inside a recurring week. It has no date and
// no timezone; ordering is by minutes since midnight.
type TimeOfDay struct {
	hour   int
	minute int
}

// NewTimeOfDay validates hour (0..23) and minute (0..59).
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("model: hour %d out of range 0..23", hour)
	}
	if minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("model: minute %d out of range 0..59", minute)
	}
	return TimeOfDay{hour: hour, minute: minute}, nil
}

// MustTimeOfDay is NewTimeOfDay for constants and tests.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeFromMinutes converts minutes since midnight, clamped to 00:00..23:59.
func TimeFromMinutes(m int) TimeOfDay {
	if m < 0 {
		m = 0
	}
	if m > 23*60+59 {
		m = 23*60 + 59
	}
	return TimeOfDay{hour: m / 60, minute: m % 60}
}

// ParseTimeOfDay parses "H:mm" or "HH:mm".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("model: invalid time %q, want HH:mm", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("model: invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("model: invalid minute in %q", s)
	}
	return NewTimeOfDay(h, m)
}

// TimeOfDayOf extracts the wall-clock part of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{hour: t.Hour(), minute: t.Minute()}
}

func (t TimeOfDay) Hour() int   { return t.hour }
func (t TimeOfDay) Minute() int { return t.minute }

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.hour*60 + t.minute }

// Compare returns -1, 0 or +1.
func (t TimeOfDay) Compare(o TimeOfDay) int {
	a, b := t.Minutes(), o.Minutes()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Minutes() < o.Minutes() }
func (t TimeOfDay) After(o TimeOfDay) bool  { return t.Minutes() > o.Minutes() }
func (t TimeOfDay) Equal(o TimeOfDay) bool  { return t.Minutes() == o.Minutes() }

// AddMinutes shifts t, clamping at the day boundaries.
func (t TimeOfDay) AddMinutes(d int) TimeOfDay {
	return TimeFromMinutes(t.Minutes() + d)
}

// String formats as HH:mm.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.hour, t.minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

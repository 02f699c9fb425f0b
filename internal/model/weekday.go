package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday numbers the days of the recurring week, Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of distinct Weekday values.
const DaysPerWeek = 7

var weekdayNames = [DaysPerWeek]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Short returns the capitalised three-letter abbreviation ("Mon").
func (d Weekday) Short() string {
	if !d.Valid() {
		return "?"
	}
	n := weekdayNames[d]
	return strings.ToUpper(n[:1]) + n[1:3]
}

// ParseWeekday accepts full English names or three-letter abbreviations in
// any case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if s == n || (len(s) == 3 && strings.HasPrefix(n, s)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("model: unknown weekday %q", s)
}

// WeekdayFromTime converts the stdlib Sunday-first numbering.
func WeekdayFromTime(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % DaysPerWeek)
}

// AllWeekdays returns Monday..Sunday.
func AllWeekdays() []Weekday {
	return WeekOrder("monday")
}

// WeekOrder returns the seven days starting at weekStart ("monday" or
// "sunday"; anything else is treated as monday).
func WeekOrder(weekStart string) []Weekday {
	first := Monday
	if strings.EqualFold(weekStart, "sunday") {
		first = Sunday
	}
	out := make([]Weekday, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		out = append(out, Weekday((int(first)+i)%DaysPerWeek))
	}
	return out
}

// IndexOf returns the position of d in order, or -1.
func IndexOf(order []Weekday, d Weekday) int {
	for i, o := range order {
		if o == d {
			return i
		}
	}
	return -1
}

package model

import "math"

// SlotGrid describes the visible hours of the time axis and how they are
// divided into slots.
type SlotGrid struct {
	StartHour int // first visible hour, inclusive
	EndHour   int // last visible hour, exclusive (24 allowed)
	Interval  int // slot length in minutes: 15, 30 or 60
}

// DefaultSlotGrid covers 08:00..20:00 in 30 minute slots.
func DefaultSlotGrid() SlotGrid {
	return SlotGrid{StartHour: 8, EndHour: 20, Interval: 30}
}

// SlotCount is the number of slots between StartHour and EndHour.
func (g SlotGrid) SlotCount() int {
	if g.Interval <= 0 || g.EndHour <= g.StartHour {
		return 0
	}
	return (g.EndHour - g.StartHour) * 60 / g.Interval
}

func (g SlotGrid) rel(t TimeOfDay) int {
	return t.Minutes() - g.StartHour*60
}

// SlotIndex is floor((minutes - startHour*60) / interval). It may be negative
// or >= SlotCount for times outside the visible hours.
func (g SlotGrid) SlotIndex(t TimeOfDay) int {
	if g.Interval <= 0 {
		return 0
	}
	return int(math.Floor(float64(g.rel(t)) / float64(g.Interval)))
}

// SlotOffset is the fractional position of t inside its slot, in [0,1).
func (g SlotGrid) SlotOffset(t TimeOfDay) float64 {
	if g.Interval <= 0 {
		return 0
	}
	r := g.rel(t) - g.SlotIndex(t)*g.Interval
	return float64(r) / float64(g.Interval)
}

// Position is SlotIndex+SlotOffset, clamped to [0, SlotCount].
func (g SlotGrid) Position(t TimeOfDay) float64 {
	p := float64(g.SlotIndex(t)) + g.SlotOffset(t)
	return clamp(p, 0, float64(g.SlotCount()))
}

// PositionOfMinutes is Position for a raw minute count; used for the
// exclusive end of the last visible slot, which may be 24:00.
func (g SlotGrid) PositionOfMinutes(m int) float64 {
	if g.Interval <= 0 {
		return 0
	}
	p := float64(m-g.StartHour*60) / float64(g.Interval)
	return clamp(p, 0, float64(g.SlotCount()))
}

// SlotStart returns the time at which slot i begins.
func (g SlotGrid) SlotStart(i int) TimeOfDay {
	return TimeFromMinutes(g.StartHour*60 + i*g.Interval)
}

// Covers reports whether [start,end) intersects the visible hours.
func (g SlotGrid) Covers(start, end int) bool {
	return end > g.StartHour*60 && start < g.EndHour*60
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package model

// Kind distinguishes caller-supplied events from synthesized overflow markers.
type Kind int

const (
	KindOrdinary Kind = iota
	KindOverflow
)

func (k Kind) String() string {
	if k == KindOverflow {
		return "overflow"
	}
	return "ordinary"
}

// OverflowIDPrefix starts every synthesized marker id. Caller event ids may
// not use it.
const OverflowIDPrefix = "overflow-"

// Overflow is the payload of a synthesized "+N more" marker.
type Overflow struct {
	Count int
	// MemberIDs are the hidden events folded into the marker, earliest
	// start first. MemberIDs[0] is the anchor used when zooming on a click.
	MemberIDs []string
}

// Event is one entry of the recurring week.
//
// The engine never mutates an Event. Display metadata (Title, Color, Meta)
// is carried through untouched for the host.
type Event struct {
	ID       string
	Day      Weekday
	Start    TimeOfDay
	End      TimeOfDay
	Priority int

	Title string
	Color string
	// Background events span the whole day band underneath ordinary events
	// and never take a lane.
	Background bool
	Meta       map[string]string

	// Overflow is non-nil only for markers produced by the overlap resolver.
	Overflow *Overflow
}

func (e Event) Kind() Kind {
	if e.Overflow != nil {
		return KindOverflow
	}
	return KindOrdinary
}

func (e Event) IsOverflow() bool { return e.Overflow != nil }

// StartMinutes and EndMinutes give the half-open interval [start,end).
func (e Event) StartMinutes() int { return e.Start.Minutes() }
func (e Event) EndMinutes() int   { return e.End.Minutes() }

// Overlaps reports whether the half-open intervals intersect.
func (e Event) Overlaps(o Event) bool {
	return e.StartMinutes() < o.EndMinutes() && o.StartMinutes() < e.EndMinutes()
}

// EventsByDay splits events into per-day slices, preserving input order.
func EventsByDay(events []Event) map[Weekday][]Event {
	out := make(map[Weekday][]Event)
	for _, ev := range events {
		out[ev.Day] = append(out[ev.Day], ev)
	}
	return out
}

package hitindex

import (
	"math"
	"sort"

	"weekcal/internal/layout"
	"weekcal/internal/model"
)

// DefaultCellSize is the edge of a grid cell in pixels.
const DefaultCellSize = 50

// maxCellsPerAxis caps the grid; larger layouts get proportionally larger
// cells.
const maxCellsPerAxis = 512

// Type classifies what lies under a point.
type Type int

const (
	None Type = iota
	Event
	DayHeader
	TimeSlot
	Grid
	PrevDayButton
	NextDayButton
)

var typeNames = [...]string{"none", "event", "day-header", "time-slot", "grid", "prev-day-button", "next-day-button"}

func (t Type) String() string {
	if int(t) < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Result is the answer to a point query.
type Result struct {
	Type    Type                `json:"type"`
	Point   layout.Point        `json:"point"`
	EventID string              `json:"event_id,omitempty"`
	Event   *layout.EventLayout `json:"event,omitempty"`
	Day     model.Weekday       `json:"day"`
	// Slot is the time-slot index for TimeSlot and Grid hits, -1 otherwise.
	Slot int `json:"slot"`
}

type cellKey struct {
	x, y int
}

// Index is a uniform-grid spatial hash over the event rects of one layout.
// It is never mutated after Build; a new layout needs a new Index.
type Index struct {
	l        *layout.ScheduleLayout
	cellSize float64
	cells    map[cellKey][]int
	// lo and hi are the inclusive cell bounds of the layout's content and
	// grid; spans are clamped to them.
	lo, hi cellKey
}

// Build indexes every event rect of l. cellSize <= 0 selects DefaultCellSize.
func Build(l *layout.ScheduleLayout, cellSize float64) *Index {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = DefaultCellSize
	}
	bounds := l.Content.Union(l.Grid)
	if ext := math.Max(bounds.X+bounds.Width, bounds.Y+bounds.Height); ext/cellSize > maxCellsPerAxis {
		cellSize = ext / maxCellsPerAxis
	}
	ix := &Index{
		l:        l,
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
	ix.lo.x, ix.lo.y, ix.hi.x, ix.hi.y = ix.rawSpan(bounds)
	for i, el := range l.Events {
		x0, y0, x1, y1 := ix.span(el.Rect)
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				k := cellKey{cx, cy}
				ix.cells[k] = append(ix.cells[k], i)
			}
		}
	}
	return ix
}

// Layout returns the layout the index was built from.
func (ix *Index) Layout() *layout.ScheduleLayout { return ix.l }

func (ix *Index) cell(v float64) int {
	return int(math.Floor(v / ix.cellSize))
}

// span returns the inclusive cell range covered by r, clamped to the
// indexed bounds. The range is empty when r lies outside them.
func (ix *Index) span(r layout.Rect) (int, int, int, int) {
	x0, y0, x1, y1 := ix.rawSpan(r)
	return max(x0, ix.lo.x), max(y0, ix.lo.y), min(x1, ix.hi.x), min(y1, ix.hi.y)
}

func (ix *Index) rawSpan(r layout.Rect) (int, int, int, int) {
	x0, y0 := ix.cell(r.X), ix.cell(r.Y)
	x1, y1 := x0, y0
	if r.Width > 0 {
		x1 = ix.cell(math.Nextafter(r.X+r.Width, math.Inf(-1)))
	}
	if r.Height > 0 {
		y1 = ix.cell(math.Nextafter(r.Y+r.Height, math.Inf(-1)))
	}
	return x0, y0, x1, y1
}

// EventAt returns the topmost event containing p. Overlapping candidates
// resolve to the smallest area; equal areas resolve to the later-drawn one.
func (ix *Index) EventAt(p layout.Point) (layout.EventLayout, bool) {
	best := -1
	for _, i := range ix.cells[cellKey{ix.cell(p.X), ix.cell(p.Y)}] {
		r := ix.l.Events[i].Rect
		if !r.Contains(p) {
			continue
		}
		if best < 0 || r.Area() <= ix.l.Events[best].Rect.Area() {
			best = i
		}
	}
	if best < 0 {
		return layout.EventLayout{}, false
	}
	return ix.l.Events[best], true
}

// EventsIn returns every event whose rect intersects r, deduplicated, in
// layout order.
func (ix *Index) EventsIn(r layout.Rect) []layout.EventLayout {
	x0, y0, x1, y1 := ix.span(r)
	seen := make(map[int]bool)
	var hits []int
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			for _, i := range ix.cells[cellKey{cx, cy}] {
				if seen[i] {
					continue
				}
				seen[i] = true
				if ix.l.Events[i].Rect.Intersects(r) {
					hits = append(hits, i)
				}
			}
		}
	}
	sort.Ints(hits)
	out := make([]layout.EventLayout, 0, len(hits))
	for _, i := range hits {
		out = append(out, ix.l.Events[i])
	}
	return out
}

// HitTest classifies p. Navigation buttons take precedence over the header
// they sit in; a disabled button reports None so it can never be hovered or
// clicked.
func (ix *Index) HitTest(p layout.Point) Result {
	res := Result{Type: None, Point: p, Slot: -1}
	l := ix.l

	for _, d := range l.Days {
		if d.Prev != nil && d.Prev.Rect.Contains(p) {
			if d.Prev.Disabled {
				return res
			}
			res.Type, res.Day = PrevDayButton, d.Day
			return res
		}
		if d.Next != nil && d.Next.Rect.Contains(p) {
			if d.Next.Disabled {
				return res
			}
			res.Type, res.Day = NextDayButton, d.Day
			return res
		}
	}

	if el, ok := ix.EventAt(p); ok {
		res.Type = Event
		res.EventID = el.ID
		res.Event = &el
		res.Day = el.Day
		return res
	}

	for _, d := range l.Days {
		if d.Header.Contains(p) {
			res.Type, res.Day = DayHeader, d.Day
			return res
		}
	}
	for _, s := range l.Slots {
		if s.Label.Contains(p) {
			res.Type, res.Slot = TimeSlot, s.Index
			return res
		}
	}
	for _, d := range l.Days {
		if d.Content.Contains(p) {
			res.Type, res.Day = Grid, d.Day
			res.Slot = ix.slotAt(p)
			return res
		}
	}
	return res
}

func (ix *Index) slotAt(p layout.Point) int {
	l := ix.l
	if l.SlotSize <= 0 {
		return -1
	}
	along := p.Y - l.Content.Y
	if l.Orientation == layout.Horizontal {
		along = p.X - l.Content.X
	}
	i := int(math.Floor(along / l.SlotSize))
	if i < 0 || i >= len(l.Slots) {
		return -1
	}
	return i
}

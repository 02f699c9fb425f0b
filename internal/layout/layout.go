package layout

import (
	"math"

	"go.uber.org/multierr"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/overlap"
)

// Default band sizes in pixels.
const (
	DefaultHeaderSize    = 40
	DefaultAxisSize      = 56
	DefaultNavButtonSize = 28
	DefaultLaneGap       = 2
)

// Viewport limits. Layouts are rasterised and indexed at device resolution,
// so oversized inputs are rejected instead of computed.
const (
	MaxViewport         = 16384
	MaxDevicePixelRatio = 8
	// MaxDevicePixels bounds width*height*dpr².
	MaxDevicePixels = 1 << 26
	// MaxMinZoomedSlotSize bounds MinZoomedSlotSize.
	MaxMinZoomedSlotSize = 1024
)

// Options are the static parameters of an Engine.
type Options struct {
	Orientation Orientation
	Grid        model.SlotGrid

	// HeaderSize is the thickness of the day-header band, AxisSize that of
	// the time-label band.
	HeaderSize float64
	AxisSize   float64
	// NavButtonSize is the edge of the prev/next buttons shown in the
	// header of a zoomed day.
	NavButtonSize float64
	// LaneGap separates adjacent lanes when a cluster has more than one.
	LaneGap float64
	// MinZoomedSlotSize forces a minimum slot length in the zoomed view so
	// the content scrolls rather than squeezes. Zero disables it.
	MinZoomedSlotSize float64

	// OverflowLabel titles overflow markers; nil means "+N more".
	OverflowLabel overlap.LabelFunc
}

// DefaultOptions returns a vertical 08:00-20:00 half-hour grid.
func DefaultOptions() Options {
	return Options{
		Orientation:   Vertical,
		Grid:          model.DefaultSlotGrid(),
		HeaderSize:    DefaultHeaderSize,
		AxisSize:      DefaultAxisSize,
		NavButtonSize: DefaultNavButtonSize,
		LaneGap:       DefaultLaneGap,
	}
}

// Validate reports every malformed option.
func (o Options) Validate() error {
	var errs error
	if o.Orientation != Vertical && o.Orientation != Horizontal {
		errs = model.Violation(errs, "orientation", "unknown value %d", int(o.Orientation))
	}
	errs = multierr.Append(errs, o.Grid.Validate())
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"headerSize", o.HeaderSize},
		{"axisSize", o.AxisSize},
		{"navButtonSize", o.NavButtonSize},
		{"laneGap", o.LaneGap},
		{"minZoomedSlotSize", o.MinZoomedSlotSize},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			errs = model.Violation(errs, f.name, "must be a finite non-negative number, got %v", f.v)
		}
	}
	if o.MinZoomedSlotSize > MaxMinZoomedSlotSize {
		errs = model.Violation(errs, "minZoomedSlotSize", "must be at most %d, got %v", MaxMinZoomedSlotSize, o.MinZoomedSlotSize)
	}
	return model.AsValidationError(errs)
}

// Engine computes layouts. It holds no mutable state and is safe to share.
type Engine struct {
	opts Options
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

func (e *Engine) Options() Options { return e.opts }

// WithOrientation returns an Engine identical to e but for orientation.
func (e *Engine) WithOrientation(o Orientation) *Engine {
	opts := e.opts
	opts.Orientation = o
	return &Engine{opts: opts}
}

// Input is everything that varies between layout passes.
type Input struct {
	Width, Height    float64
	DevicePixelRatio float64

	Events []model.Event

	// ZoomedDay, when set, lays out that single day across the whole grid.
	ZoomedDay *model.Weekday
	// VisibleDays is the normal-view day order. It is also the order used
	// by prev/next navigation while zoomed. Nil means Monday..Sunday.
	VisibleDays []model.Weekday
}

func (in Input) validate() error {
	var errs error
	errs = multierr.Append(errs, ValidateViewport(in.Width, in.Height, in.DevicePixelRatio))
	if in.ZoomedDay != nil && !in.ZoomedDay.Valid() {
		errs = model.Violation(errs, "zoomedDay", "must be in 0..6, got %d", int(*in.ZoomedDay))
	}
	seen := make(map[model.Weekday]bool)
	for i, d := range in.VisibleDays {
		if !d.Valid() {
			errs = model.Violation(errs, "visibleDays", "entry %d out of range: %d", i, int(d))
		} else if seen[d] {
			errs = model.Violation(errs, "visibleDays", "duplicate day %s", d)
		}
		seen[d] = true
	}
	errs = multierr.Append(errs, model.ValidateEvents(in.Events))
	return model.AsValidationError(errs)
}

// ValidateViewport checks a viewport against the size limits. A dpr of zero
// or less means 1.
func ValidateViewport(width, height, dpr float64) error {
	var errs error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"width", width},
		{"height", height},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			errs = model.Violation(errs, f.name, "must be a finite non-negative number, got %v", f.v)
		} else if f.v > MaxViewport {
			errs = model.Violation(errs, f.name, "must be at most %d, got %v", MaxViewport, f.v)
		}
	}
	switch {
	case math.IsNaN(dpr) || math.IsInf(dpr, 0):
		errs = model.Violation(errs, "devicePixelRatio", "must be finite, got %v", dpr)
	case dpr > MaxDevicePixelRatio:
		errs = model.Violation(errs, "devicePixelRatio", "must be at most %d, got %v", MaxDevicePixelRatio, dpr)
	case width <= MaxViewport && height <= MaxViewport:
		if dpr <= 0 {
			dpr = 1
		}
		if px := width * height * dpr * dpr; px > MaxDevicePixels {
			errs = model.Violation(errs, "size", "%.0f device pixels exceeds %d", px, MaxDevicePixels)
		}
	}
	return model.AsValidationError(errs)
}

// NavButton is a prev/next control in the header of a zoomed day.
type NavButton struct {
	Rect     Rect `json:"rect"`
	Disabled bool `json:"disabled"`
}

// DayLayout is one day band.
type DayLayout struct {
	Day     model.Weekday `json:"day"`
	Header  Rect          `json:"header"`
	Content Rect          `json:"content"`
	Prev    *NavButton    `json:"prev,omitempty"`
	Next    *NavButton    `json:"next,omitempty"`
}

// TimeSlotLayout is one label cell of the time axis and the gridline at its
// start.
type TimeSlotLayout struct {
	Index int             `json:"index"`
	Time  model.TimeOfDay `json:"time"`
	Label Rect            `json:"label"`
	Line  Line            `json:"line"`
}

// EventLayout is an event positioned on screen. Opacity and Scale are 1 in
// computed layouts and vary only in animated frames.
type EventLayout struct {
	Event      model.Event   `json:"-"`
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Day        model.Weekday `json:"day"`
	Rect       Rect          `json:"rect"`
	Lane       int           `json:"lane"`
	Lanes      int           `json:"lanes"`
	Background bool          `json:"background,omitempty"`
	Overflow   bool          `json:"overflow,omitempty"`
	Opacity    float64       `json:"opacity"`
	Scale      float64       `json:"scale"`
}

// ScheduleLayout is an immutable computed layout.
type ScheduleLayout struct {
	Orientation      Orientation `json:"orientation"`
	Width            float64     `json:"width"`
	Height           float64     `json:"height"`
	DevicePixelRatio float64     `json:"device_pixel_ratio"`

	HeaderBand Rect `json:"header_band"`
	TimeAxis   Rect `json:"time_axis"`
	// Grid is the visible event area; Content is the full scrollable event
	// area, which exceeds Grid when zoomed slots hit MinZoomedSlotSize.
	Grid    Rect `json:"grid"`
	Content Rect `json:"content"`

	SlotSize     float64 `json:"slot_size"`
	DayThickness float64 `json:"day_thickness"`

	Days   []DayLayout      `json:"days"`
	Slots  []TimeSlotLayout `json:"slots"`
	Events []EventLayout    `json:"events"`

	ZoomedDay   *model.Weekday  `json:"zoomed_day,omitempty"`
	VisibleDays []model.Weekday `json:"visible_days"`

	byID map[string]int
}

// Event looks up an event layout by id.
func (l *ScheduleLayout) Event(id string) (EventLayout, bool) {
	i, ok := l.byID[id]
	if !ok {
		return EventLayout{}, false
	}
	return l.Events[i], true
}

// Day looks up a day band.
func (l *ScheduleLayout) Day(d model.Weekday) (DayLayout, bool) {
	for _, dl := range l.Days {
		if dl.Day == d {
			return dl, true
		}
	}
	return DayLayout{}, false
}

// IsZoomed reports whether this is a single-day layout.
func (l *ScheduleLayout) IsZoomed() bool { return l.ZoomedDay != nil }

// AlongFraction returns where r starts and ends along the time axis as
// fractions of the content extent.
func (l *ScheduleLayout) AlongFraction(r Rect) (float64, float64) {
	origin, size, start, length := l.Content.Y, l.Content.Height, r.Y, r.Height
	if l.Orientation == Horizontal {
		origin, size, start, length = l.Content.X, l.Content.Width, r.X, r.Width
	}
	if size == 0 {
		return 0, 0
	}
	return (start - origin) / size, (start + length - origin) / size
}

// Compute lays out events for the given viewport. It returns a
// *model.ValidationError listing every malformed field; degenerate
// viewports produce empty but well-formed layouts.
func (e *Engine) Compute(in Input) (*ScheduleLayout, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	opts := e.opts

	dpr := in.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	f := frame{orientation: opts.Orientation, dpr: dpr}

	baseDays := in.VisibleDays
	if baseDays == nil {
		baseDays = model.AllWeekdays()
	}
	days := baseDays
	if in.ZoomedDay != nil {
		days = []model.Weekday{*in.ZoomedDay}
	}

	alongExt, acrossExt := f.extents(in.Width, in.Height)
	header := math.Min(opts.HeaderSize, alongExt)
	axis := math.Min(opts.AxisSize, acrossExt)
	gridAlong := math.Max(0, alongExt-header)
	gridAcross := math.Max(0, acrossExt-axis)

	slots := opts.Grid.SlotCount()
	slotSize := gridAlong / float64(slots)
	if in.ZoomedDay != nil && opts.MinZoomedSlotSize > slotSize {
		slotSize = opts.MinZoomedSlotSize
	}
	contentAlong := slotSize * float64(slots)

	dayThick := 0.0
	if len(days) > 0 {
		dayThick = gridAcross / float64(len(days))
	}

	out := &ScheduleLayout{
		Orientation:      opts.Orientation,
		Width:            in.Width,
		Height:           in.Height,
		DevicePixelRatio: dpr,
		HeaderBand:       f.rect(0, header, axis, acrossExt),
		TimeAxis:         f.rect(header, header+contentAlong, 0, axis),
		Grid:             f.rect(header, alongExt, axis, acrossExt),
		Content:          f.rect(header, header+contentAlong, axis, axis+gridAcross),
		SlotSize:         slotSize,
		DayThickness:     dayThick,
		VisibleDays:      append([]model.Weekday(nil), baseDays...),
		byID:             make(map[string]int),
	}
	if in.ZoomedDay != nil {
		d := *in.ZoomedDay
		out.ZoomedDay = &d
	}

	for i := 0; i < slots; i++ {
		a0 := header + float64(i)*slotSize
		out.Slots = append(out.Slots, TimeSlotLayout{
			Index: i,
			Time:  opts.Grid.SlotStart(i),
			Label: f.rect(a0, a0+slotSize, 0, axis),
			Line:  Line{From: f.point(a0, axis), To: f.point(a0, axis+gridAcross)},
		})
	}

	byDay := model.EventsByDay(in.Events)
	resolveOpts := overlap.Options{Compress: in.ZoomedDay == nil, Label: opts.OverflowLabel}

	for i, day := range days {
		c0 := axis + float64(i)*dayThick
		c1 := c0 + dayThick
		dl := DayLayout{
			Day:     day,
			Header:  f.rect(0, header, c0, c1),
			Content: f.rect(header, header+contentAlong, c0, c1),
		}
		if in.ZoomedDay != nil {
			dl.Prev, dl.Next = navButtons(f, opts, baseDays, day, header, c0, c1)
		}
		out.Days = append(out.Days, dl)

		res := overlap.ResolveDay(day, byDay[day], resolveOpts)
		place := func(ev model.Event, lane, lanes int, background bool) {
			if !opts.Grid.Covers(ev.StartMinutes(), ev.EndMinutes()) {
				return
			}
			a0 := header + opts.Grid.Position(ev.Start)*slotSize
			a1 := header + opts.Grid.PositionOfMinutes(ev.EndMinutes())*slotSize
			l0, l1 := laneEdges(c0, dayThick, opts.LaneGap, lane, lanes)
			out.byID[ev.ID] = len(out.Events)
			out.Events = append(out.Events, EventLayout{
				Event:      ev,
				ID:         ev.ID,
				Title:      ev.Title,
				Day:        day,
				Rect:       f.rect(a0, a1, l0, l1),
				Lane:       lane,
				Lanes:      lanes,
				Background: background,
				Overflow:   ev.IsOverflow(),
				Opacity:    1,
				Scale:      1,
			})
		}
		for _, ev := range res.Background {
			place(ev, 0, 1, true)
		}
		for _, p := range res.Visible {
			place(p.Event, p.Lane, p.Lanes, false)
		}
		for _, p := range res.Overflow {
			place(p.Event, p.Lane, p.Lanes, false)
		}
	}

	appLog.Debug("layout: computed",
		"orientation", opts.Orientation.String(),
		"width", in.Width,
		"height", in.Height,
		"days", len(out.Days),
		"events", len(out.Events),
		"zoomed", in.ZoomedDay != nil,
	)
	return out, nil
}

// laneEdges returns the across-axis edges of a lane inside a day band.
func laneEdges(dayStart, dayThick, gap float64, lane, lanes int) (float64, float64) {
	if lanes <= 1 {
		return dayStart, dayStart + dayThick
	}
	w := (dayThick - gap*float64(lanes-1)) / float64(lanes)
	if w < 0 {
		w = 0
		gap = dayThick / float64(lanes-1)
	}
	start := dayStart + float64(lane)*(w+gap)
	return start, start + w
}

// navButtons places the prev/next controls at both ends of the header cell.
// Disabled state follows the normal-view order so navigation is stable
// whichever day is zoomed.
func navButtons(f frame, opts Options, order []model.Weekday, day model.Weekday, header, c0, c1 float64) (*NavButton, *NavButton) {
	size := math.Min(opts.NavButtonSize, header)
	size = math.Min(size, (c1-c0)/2)
	a0 := (header - size) / 2
	idx := model.IndexOf(order, day)

	prev := &NavButton{
		Rect:     f.rect(a0, a0+size, c0, c0+size),
		Disabled: idx <= 0,
	}
	next := &NavButton{
		Rect:     f.rect(a0, a0+size, c1-size, c1),
		Disabled: idx < 0 || idx >= len(order)-1,
	}
	return prev, next
}

// AdjacentDay returns the day before (delta -1) or after (delta +1) day in
// order.
func AdjacentDay(order []model.Weekday, day model.Weekday, delta int) (model.Weekday, bool) {
	idx := model.IndexOf(order, day)
	if idx < 0 {
		return 0, false
	}
	j := idx + delta
	if j < 0 || j >= len(order) {
		return 0, false
	}
	return order[j], true
}

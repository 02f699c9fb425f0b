package zoom

import (
	"time"

	"weekcal/internal/layout"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

const (
	// DefaultDuration is the length of a zoom transition.
	DefaultDuration = 320 * time.Millisecond

	// appearScale is the across-axis scale new events grow from when zooming
	// in, and the scale vanishing events shrink to.
	appearScale = 0.3
)

// EaseFunc maps linear time in [0,1] to eased progress in [0,1].
type EaseFunc func(t float64) float64

// EaseOutCubic is 1-(1-t)^3.
func EaseOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

func Linear(t float64) float64 { return t }

// Snapshot is the copied geometry of one event at the moment a transition
// starts. It never references live layout or event values.
type Snapshot struct {
	ID         string
	Day        model.Weekday
	Title      string
	Color      string
	Rect       layout.Rect
	Opacity    float64
	Scale      float64
	Lane       int
	Lanes      int
	Background bool
	// MemberIDs is set for overflow markers.
	MemberIDs []string
}

func (s Snapshot) IsOverflow() bool { return s.MemberIDs != nil }

// DaySnapshot is the copied bounds of a day band.
type DaySnapshot struct {
	Header  layout.Rect
	Content layout.Rect
}

// Scene is everything a transition starts from.
type Scene struct {
	Events map[string]Snapshot
	// Order keeps snapshot ids in draw order so frames are deterministic.
	Order  []string
	Days   map[model.Weekday]DaySnapshot
	Scroll layout.Point
	// ZoomedDay is the zoom state the scene was captured under.
	ZoomedDay *model.Weekday
}

// CaptureLayout snapshots a static layout.
func CaptureLayout(l *layout.ScheduleLayout, scroll layout.Point) Scene {
	sc := newScene(l, scroll)
	for _, el := range l.Events {
		sc.add(snapshotOf(el))
	}
	return sc
}

// CaptureFrame snapshots an animated frame so that interrupting a running
// transition continues from what is on screen. Day bounds come from l.
func CaptureFrame(frames []FrameEvent, l *layout.ScheduleLayout, scroll layout.Point) Scene {
	sc := newScene(l, scroll)
	for _, fe := range frames {
		s := snapshotOf(fe.EventLayout)
		s.Opacity = fe.Opacity
		s.Scale = fe.Scale
		sc.add(s)
	}
	return sc
}

func newScene(l *layout.ScheduleLayout, scroll layout.Point) Scene {
	sc := Scene{
		Events: make(map[string]Snapshot),
		Days:   make(map[model.Weekday]DaySnapshot),
		Scroll: scroll,
	}
	if l != nil {
		if l.ZoomedDay != nil {
			d := *l.ZoomedDay
			sc.ZoomedDay = &d
		}
		for _, d := range l.Days {
			sc.Days[d.Day] = DaySnapshot{Header: d.Header, Content: d.Content}
		}
	}
	return sc
}

func (sc *Scene) add(s Snapshot) {
	if _, dup := sc.Events[s.ID]; !dup {
		sc.Order = append(sc.Order, s.ID)
	}
	sc.Events[s.ID] = s
}

func snapshotOf(el layout.EventLayout) Snapshot {
	s := Snapshot{
		ID:         el.ID,
		Day:        el.Day,
		Title:      el.Title,
		Color:      el.Event.Color,
		Rect:       el.Rect,
		Opacity:    el.Opacity,
		Scale:      el.Scale,
		Lane:       el.Lane,
		Lanes:      el.Lanes,
		Background: el.Background,
	}
	if el.Event.Overflow != nil {
		s.MemberIDs = append([]string{}, el.Event.Overflow.MemberIDs...)
	}
	return s
}

// Transition is the transient state of one zoom animation.
type Transition struct {
	StartTime time.Time
	Duration  time.Duration
	// Progress is eased progress in [0,1].
	Progress float64

	ZoomingIn bool
	// TargetDay is the zoomed day of whichever side is zoomed: the new day
	// when zooming in, the previously zoomed day when zooming out.
	TargetDay    model.Weekday
	HasTargetDay bool
	// DayOrder is the normal-view order used to decide slide direction.
	DayOrder []model.Weekday

	From Scene
	To   *layout.ScheduleLayout
}

// Controller is the idle/animating state machine. It is advanced by an
// external clock and must only be driven from one goroutine.
type Controller struct {
	duration time.Duration
	ease     EaseFunc
	cur      *Transition
}

// NewController returns an idle controller. Zero duration and nil ease
// select the defaults.
func NewController(duration time.Duration, ease EaseFunc) *Controller {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if ease == nil {
		ease = EaseOutCubic
	}
	return &Controller{duration: duration, ease: ease}
}

func (c *Controller) Duration() time.Duration { return c.duration }

// Active reports whether a transition is running.
func (c *Controller) Active() bool { return c.cur != nil }

// Transition returns the running transition or nil.
func (c *Controller) Transition() *Transition { return c.cur }

// Progress is the eased progress, 1 when idle.
func (c *Controller) Progress() float64 {
	if c.cur == nil {
		return 1
	}
	return c.cur.Progress
}

// Begin starts a transition from the captured scene to the target layout.
// A running transition is replaced without completing.
func (c *Controller) Begin(from Scene, to *layout.ScheduleLayout, now time.Time) *Transition {
	tr := &Transition{
		StartTime: now,
		Duration:  c.duration,
		ZoomingIn: to.IsZoomed(),
		DayOrder:  append([]model.Weekday(nil), to.VisibleDays...),
		From:      from,
		To:        to,
	}
	switch {
	case to.ZoomedDay != nil:
		tr.TargetDay, tr.HasTargetDay = *to.ZoomedDay, true
	case from.ZoomedDay != nil:
		tr.TargetDay, tr.HasTargetDay = *from.ZoomedDay, true
	}
	if c.cur != nil {
		appLog.Debug("zoom: transition superseded", "progress", c.cur.Progress)
	}
	c.cur = tr
	appLog.Debug("zoom: transition started",
		"zooming_in", tr.ZoomingIn,
		"target_day", tr.TargetDay.String(),
		"snapshots", len(from.Events),
		"duration_ms", c.duration.Milliseconds(),
	)
	return tr
}

// Advance updates progress for now. It returns false once the controller is
// idle; reaching progress 1 discards the transition, leaving its target
// layout authoritative.
func (c *Controller) Advance(now time.Time) bool {
	tr := c.cur
	if tr == nil {
		return false
	}
	raw := 1.0
	if tr.Duration > 0 {
		raw = float64(now.Sub(tr.StartTime)) / float64(tr.Duration)
	}
	if raw < 0 {
		raw = 0
	}
	if raw >= 1 {
		tr.Progress = 1
		c.cur = nil
		appLog.Debug("zoom: transition finished")
		return false
	}
	p := c.ease(raw)
	if p < 0 {
		p = 0
	}
	if p >= 1 {
		tr.Progress = 1
		c.cur = nil
		return false
	}
	tr.Progress = p
	return true
}

// Cancel drops the running transition.
func (c *Controller) Cancel() { c.cur = nil }

// Frame returns the events to draw. While idle it is the static current
// layout; while animating it is the interpolated transition.
func (c *Controller) Frame(current *layout.ScheduleLayout, scroll layout.Point, exists func(id string) bool) []FrameEvent {
	if c.cur == nil {
		return Static(current)
	}
	return c.cur.Interpolate(scroll, exists)
}

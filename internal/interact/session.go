package interact

import (
	"errors"
	"time"

	"weekcal/internal/hitindex"
	"weekcal/internal/layout"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/overlap"
	"weekcal/internal/zoom"
)

// NoticeKind enumerates notifications raised to the host.
type NoticeKind string

const (
	DayZoomed      NoticeKind = "day-zoomed"
	ZoomReset      NoticeKind = "zoom-reset"
	EventHovered   NoticeKind = "event-hovered"
	EventUnhovered NoticeKind = "event-unhovered"
	EventClicked   NoticeKind = "event-clicked"
)

// Notice is a fire-and-forget notification for the host. Event is a copy of
// the originating domain entity, when there is one.
type Notice struct {
	Kind  NoticeKind
	Day   model.Weekday
	Event *model.Event
	// AnchorID is set when a zoom was triggered from an overflow marker.
	AnchorID string
}

// Handler receives notices synchronously on the calling goroutine.
type Handler func(Notice)

// Config sets up a Session.
type Config struct {
	Width, Height    float64
	DevicePixelRatio float64
	// VisibleDays is the normal-view order; nil means Monday..Sunday.
	VisibleDays []model.Weekday
	// HitCellSize is the spatial index cell edge; zero selects the default.
	HitCellSize float64
	// ZoomDuration and Ease configure transitions; zero values select the
	// defaults.
	ZoomDuration time.Duration
	Ease         zoom.EaseFunc
	Handler      Handler
}

// Session is the stateful façade a host drives. It owns the event arena,
// current layout and hit index, zoom controller and hover state. It is not
// safe for concurrent use.
type Session struct {
	engine *layout.Engine
	cfg    Config

	events []model.Event
	arena  map[string]model.Event

	zoomed *model.Weekday
	scroll layout.Point

	current *layout.ScheduleLayout
	index   *hitindex.Index

	zoom  *zoom.Controller
	hover *zoom.Hover
	focus string
}

// New computes the initial empty layout.
func New(engine *layout.Engine, cfg Config) (*Session, error) {
	if engine == nil {
		return nil, errors.New("interact: engine is nil")
	}
	if cfg.VisibleDays == nil {
		cfg.VisibleDays = model.AllWeekdays()
	}
	cfg.VisibleDays = append([]model.Weekday(nil), cfg.VisibleDays...)

	s := &Session{
		engine: engine,
		cfg:    cfg,
		arena:  make(map[string]model.Event),
		zoom:   zoom.NewController(cfg.ZoomDuration, cfg.Ease),
		hover:  zoom.NewHover(),
	}
	if err := s.relayout(); err != nil {
		return nil, err
	}
	return s, nil
}

// Layout is the authoritative layout: the transition target while animating.
func (s *Session) Layout() *layout.ScheduleLayout { return s.current }

// Index is the hit index of Layout.
func (s *Session) Index() *hitindex.Index { return s.index }

// Events returns a copy of the event set.
func (s *Session) Events() []model.Event {
	return append([]model.Event(nil), s.events...)
}

// Lookup finds an event in the arena.
func (s *Session) Lookup(id string) (model.Event, bool) {
	ev, ok := s.arena[id]
	return ev, ok
}

// ZoomedDay returns the zoomed day, if any.
func (s *Session) ZoomedDay() (model.Weekday, bool) {
	if s.zoomed == nil {
		return 0, false
	}
	return *s.zoomed, true
}

// VisibleDays is the single zoomed day, or the normal-view order.
func (s *Session) VisibleDays() []model.Weekday {
	if s.zoomed != nil {
		return []model.Weekday{*s.zoomed}
	}
	return append([]model.Weekday(nil), s.cfg.VisibleDays...)
}

// FocusEventID is the anchor event of the last overflow-triggered zoom.
func (s *Session) FocusEventID() string { return s.focus }

// Animating reports whether a zoom transition is running.
func (s *Session) Animating() bool { return s.zoom.Active() }

// SetEvents replaces the event set. On validation failure the previous
// events and layout remain authoritative.
func (s *Session) SetEvents(events []model.Event) error {
	prevEvents, prevArena := s.events, s.arena

	s.events = append([]model.Event(nil), events...)
	s.arena = make(map[string]model.Event, len(events))
	for _, ev := range s.events {
		s.arena[ev.ID] = ev
	}
	if err := s.relayout(); err != nil {
		s.events, s.arena = prevEvents, prevArena
		return err
	}
	return nil
}

// Resize changes the viewport.
func (s *Session) Resize(width, height, dpr float64) error {
	prev := s.cfg
	s.cfg.Width, s.cfg.Height, s.cfg.DevicePixelRatio = width, height, dpr
	if err := s.relayout(); err != nil {
		s.cfg = prev
		return err
	}
	return nil
}

// SetOrientation swaps the axis mapping.
func (s *Session) SetOrientation(o layout.Orientation) error {
	prev := s.engine
	s.engine = s.engine.WithOrientation(o)
	if err := s.relayout(); err != nil {
		s.engine = prev
		return err
	}
	return nil
}

// SetScroll records the host's scroll offset for transition compensation.
func (s *Session) SetScroll(p layout.Point) { s.scroll = p }

func (s *Session) input(zoomed *model.Weekday) layout.Input {
	return layout.Input{
		Width:            s.cfg.Width,
		Height:           s.cfg.Height,
		DevicePixelRatio: s.cfg.DevicePixelRatio,
		Events:           s.events,
		ZoomedDay:        zoomed,
		VisibleDays:      s.cfg.VisibleDays,
	}
}

// relayout recomputes the layout for the current state without animating.
// A running transition keeps animating toward the new layout.
func (s *Session) relayout() error {
	l, err := s.engine.Compute(s.input(s.zoomed))
	if err != nil {
		appLog.Error("interact: layout rejected; keeping last layout", err)
		return err
	}
	s.install(l)
	if tr := s.zoom.Transition(); tr != nil {
		tr.To = l
	}
	return nil
}

func (s *Session) install(l *layout.ScheduleLayout) {
	s.current = l
	s.index = hitindex.Build(l, s.cfg.HitCellSize)
	if h := s.hover.Hovered(); h != "" {
		if _, ok := l.Event(h); !ok {
			s.hover.SetHovered("")
		}
	}
}

// transitionTo snapshots what is on screen, computes the layout for the new
// zoom state and starts animating toward it.
func (s *Session) transitionTo(zoomed *model.Weekday, now time.Time) error {
	var scene zoom.Scene
	if s.zoom.Active() {
		scene = zoom.CaptureFrame(s.zoom.Frame(s.current, s.scroll, s.exists), s.current, s.scroll)
	} else {
		scene = zoom.CaptureLayout(s.current, s.scroll)
	}

	l, err := s.engine.Compute(s.input(zoomed))
	if err != nil {
		appLog.Error("interact: zoom layout rejected", err)
		return err
	}
	s.zoomed = zoomed
	s.install(l)
	s.zoom.Begin(scene, l, now)
	return nil
}

// ZoomTo zooms into day. Zooming into the already zoomed day is a no-op.
func (s *Session) ZoomTo(day model.Weekday, now time.Time) error {
	return s.zoomTo(day, "", now)
}

func (s *Session) zoomTo(day model.Weekday, anchor string, now time.Time) error {
	if !day.Valid() {
		return model.AsValidationError(model.Violation(nil, "day", "must be in 0..6, got %d", int(day)))
	}
	if s.zoomed != nil && *s.zoomed == day {
		s.focus = anchor
		return nil
	}
	d := day
	if err := s.transitionTo(&d, now); err != nil {
		return err
	}
	s.focus = anchor
	s.notify(Notice{Kind: DayZoomed, Day: day, AnchorID: anchor})
	return nil
}

// ResetZoom returns to the normal view.
func (s *Session) ResetZoom(now time.Time) error {
	if s.zoomed == nil {
		return nil
	}
	day := *s.zoomed
	if err := s.transitionTo(nil, now); err != nil {
		return err
	}
	s.focus = ""
	s.notify(Notice{Kind: ZoomReset, Day: day})
	return nil
}

// Step moves the zoomed day by delta along the normal-view order. It
// reports false when there is no zoom or no adjacent day.
func (s *Session) Step(delta int, now time.Time) (bool, error) {
	if s.zoomed == nil {
		return false, nil
	}
	next, ok := layout.AdjacentDay(s.cfg.VisibleDays, *s.zoomed, delta)
	if !ok {
		return false, nil
	}
	return true, s.ZoomTo(next, now)
}

// Prev zooms into the day before the zoomed one.
func (s *Session) Prev(now time.Time) (bool, error) { return s.Step(-1, now) }

// Next zooms into the day after the zoomed one.
func (s *Session) Next(now time.Time) (bool, error) { return s.Step(1, now) }

// Hit classifies a point against the authoritative layout.
func (s *Session) Hit(p layout.Point) hitindex.Result {
	return s.index.HitTest(p)
}

// PointerMove updates hover state and raises hover notices.
func (s *Session) PointerMove(p layout.Point) hitindex.Result {
	res := s.index.HitTest(p)
	id := ""
	if res.Type == hitindex.Event {
		id = res.EventID
	}
	prev := s.hover.Hovered()
	if id == prev {
		return res
	}
	if prev != "" {
		s.notify(Notice{Kind: EventUnhovered, Event: s.entity(prev)})
	}
	s.hover.SetHovered(id)
	if id != "" {
		s.notify(Notice{Kind: EventHovered, Day: res.Day, Event: s.entity(id)})
	}
	return res
}

// PointerLeave clears hover.
func (s *Session) PointerLeave() {
	if prev := s.hover.Hovered(); prev != "" {
		s.hover.SetHovered("")
		s.notify(Notice{Kind: EventUnhovered, Event: s.entity(prev)})
	}
}

// Click dispatches a click: overflow markers zoom into their day anchored on
// the earliest hidden event, other events raise EventClicked, day headers
// toggle zoom, and navigation buttons step between days.
func (s *Session) Click(p layout.Point, now time.Time) (hitindex.Result, error) {
	res := s.index.HitTest(p)
	switch res.Type {
	case hitindex.Event:
		ev := res.Event.Event
		if ev.IsOverflow() {
			anchor := ev.Overflow.MemberIDs[0]
			if _, a, ok := overlap.AnchorID(ev.ID); ok {
				anchor = a
			}
			return res, s.zoomTo(ev.Day, anchor, now)
		}
		s.notify(Notice{Kind: EventClicked, Day: ev.Day, Event: s.entity(ev.ID)})
	case hitindex.DayHeader:
		if s.zoomed != nil && *s.zoomed == res.Day {
			return res, s.ResetZoom(now)
		}
		return res, s.ZoomTo(res.Day, now)
	case hitindex.PrevDayButton:
		_, err := s.Prev(now)
		return res, err
	case hitindex.NextDayButton:
		_, err := s.Next(now)
		return res, err
	}
	return res, nil
}

// Tick advances the zoom transition and hover animation by one clock step.
// It reports whether anything is still moving.
func (s *Session) Tick(now time.Time) bool {
	zooming := s.zoom.Advance(now)
	hovering := s.hover.Tick()
	return zooming || hovering
}

// Frame returns the events to draw now: the zoom interpolation (or static
// layout) with hover brightness composited on top.
func (s *Session) Frame() []zoom.FrameEvent {
	frames := s.zoom.Frame(s.current, s.scroll, s.exists)
	s.hover.Apply(frames)
	return frames
}

func (s *Session) exists(id string) bool {
	_, ok := s.arena[id]
	return ok
}

// entity copies an event out of the arena; overflow markers are looked up
// in the current layout.
func (s *Session) entity(id string) *model.Event {
	if ev, ok := s.arena[id]; ok {
		return &ev
	}
	if el, ok := s.current.Event(id); ok {
		ev := el.Event
		return &ev
	}
	return nil
}

func (s *Session) notify(n Notice) {
	if s.cfg.Handler != nil {
		s.cfg.Handler(n)
	}
}

package zoom

import (
	"weekcal/internal/layout"
	"weekcal/internal/model"
)

// FrameEvent is an EventLayout with interpolated geometry plus the hover
// brightness composited on top.
type FrameEvent struct {
	layout.EventLayout
	Brightness float64 `json:"brightness"`
	// Vanishing marks events present before the transition but absent from
	// its target layout.
	Vanishing bool `json:"vanishing,omitempty"`
}

// Static wraps a layout's events as a frame with no animation applied.
func Static(l *layout.ScheduleLayout) []FrameEvent {
	if l == nil {
		return nil
	}
	out := make([]FrameEvent, 0, len(l.Events))
	for _, el := range l.Events {
		out = append(out, FrameEvent{EventLayout: el, Brightness: restBrightness})
	}
	return out
}

// Interpolate builds the frame for the transition's current progress.
// Vanishing events are drawn first, underneath the target events. exists
// reports whether an ordinary event is still in the caller's event set;
// snapshots of deleted events are skipped. A nil exists keeps everything.
func (tr *Transition) Interpolate(scroll layout.Point, exists func(id string) bool) []FrameEvent {
	p := tr.Progress
	o := tr.To.Orientation
	dx := scroll.X - tr.From.Scroll.X
	dy := scroll.Y - tr.From.Scroll.Y
	adjust := func(r layout.Rect) layout.Rect { return r.Translate(dx, dy) }

	out := make([]FrameEvent, 0, len(tr.To.Events)+len(tr.From.Events))

	for _, id := range tr.From.Order {
		if _, ok := tr.To.Event(id); ok {
			continue
		}
		snap := tr.From.Events[id]
		if !snapshotAlive(snap, exists) {
			continue
		}
		out = append(out, tr.vanishing(snap, adjust(snap.Rect), o, p))
	}

	for _, target := range tr.To.Events {
		fe := FrameEvent{EventLayout: target, Brightness: restBrightness}
		if snap, ok := tr.From.Events[target.ID]; ok {
			fe.Rect = adjust(snap.Rect).Lerp(target.Rect, p)
			fe.Opacity = layout.Lerp(snap.Opacity, target.Opacity, p)
			fe.Scale = layout.Lerp(snap.Scale, target.Scale, p)
			out = append(out, fe)
			continue
		}

		fe.Opacity = target.Opacity * p
		if day, ok := tr.From.Days[target.Day]; ok && tr.ZoomingIn {
			// Grow out of the centre of the day's former column.
			center := o.AcrossCenter(adjust(day.Content))
			start := o.WithAcross(target.Rect, center, o.AcrossSize(target.Rect)*appearScale)
			fe.Rect = start.Lerp(target.Rect, p)
			fe.Scale = layout.Lerp(appearScale, 1, p)
		}
		out = append(out, fe)
	}
	return out
}

// vanishing synthesizes the disappearing frame of a snapshot. Zooming in,
// it slides away from the target day and shrinks; zooming out, it slides
// toward its own day column in the target layout.
func (tr *Transition) vanishing(snap Snapshot, from layout.Rect, o layout.Orientation, p float64) FrameEvent {
	rect := from
	scale := snap.Scale
	center := o.AcrossCenter(from)
	size := o.AcrossSize(from)

	if tr.ZoomingIn {
		dir := tr.slideDirection(snap.Day)
		center += dir * o.AcrossSize(tr.To.Grid) * p
		size *= layout.Lerp(1, appearScale, p)
		scale *= layout.Lerp(1, appearScale, p)
		rect = o.WithAcross(from, center, size)
	} else if day, ok := tr.To.Day(snap.Day); ok {
		center = layout.Lerp(center, o.AcrossCenter(day.Content), p)
		rect = o.WithAcross(from, center, size)
	}

	ev := model.Event{ID: snap.ID, Day: snap.Day, Title: snap.Title, Color: snap.Color, Background: snap.Background}
	if snap.IsOverflow() {
		ev.Overflow = &model.Overflow{Count: len(snap.MemberIDs), MemberIDs: snap.MemberIDs}
	}
	return FrameEvent{
		EventLayout: layout.EventLayout{
			Event:      ev,
			ID:         snap.ID,
			Title:      snap.Title,
			Day:        snap.Day,
			Rect:       rect,
			Lane:       snap.Lane,
			Lanes:      snap.Lanes,
			Background: snap.Background,
			Overflow:   snap.IsOverflow(),
			Opacity:    snap.Opacity * (1 - p),
			Scale:      scale,
		},
		Brightness: restBrightness,
		Vanishing:  true,
	}
}

// slideDirection is -1 for days before the target in the normal-view order,
// +1 for days after it, 0 for the target itself or unknown days.
func (tr *Transition) slideDirection(day model.Weekday) float64 {
	if !tr.HasTargetDay {
		return 0
	}
	i := model.IndexOf(tr.DayOrder, day)
	t := model.IndexOf(tr.DayOrder, tr.TargetDay)
	switch {
	case i < 0 || t < 0 || i == t:
		return 0
	case i < t:
		return -1
	default:
		return 1
	}
}

// snapshotAlive keeps overflow markers while any member survives.
func snapshotAlive(s Snapshot, exists func(string) bool) bool {
	if exists == nil {
		return true
	}
	if !s.IsOverflow() {
		return exists(s.ID)
	}
	for _, id := range s.MemberIDs {
		if exists(id) {
			return true
		}
	}
	return false
}

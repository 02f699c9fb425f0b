package layout

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/model"
)

func ev(id string, day model.Weekday, sh, sm, eh, em int) model.Event {
	return model.Event{
		ID:    id,
		Day:   day,
		Start: model.MustTimeOfDay(sh, sm),
		End:   model.MustTimeOfDay(eh, em),
	}
}

func testEngine(t *testing.T, mutate ...func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Grid = model.SlotGrid{StartHour: 8, EndHour: 18, Interval: 60}
	opts.HeaderSize = 40
	opts.AxisSize = 60
	opts.LaneGap = 0
	for _, m := range mutate {
		m(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func sampleEvents() []model.Event {
	return []model.Event{
		ev("a", model.Monday, 10, 0, 11, 0),
		ev("b", model.Monday, 10, 30, 11, 30),
		ev("c", model.Wednesday, 8, 0, 9, 30),
		ev("d", model.Friday, 17, 0, 18, 0),
		ev("late", model.Friday, 19, 0, 20, 0),
	}
}

func weekday(d model.Weekday) *model.Weekday { return &d }

func TestVerticalGeometry(t *testing.T) {
	e := testEngine(t)
	l, err := e.Compute(Input{Width: 760, Height: 540, Events: sampleEvents()})
	require.NoError(t, err)

	assert.Equal(t, Rect{X: 60, Y: 0, Width: 700, Height: 40}, l.HeaderBand)
	assert.Equal(t, Rect{X: 0, Y: 40, Width: 60, Height: 500}, l.TimeAxis)
	assert.Equal(t, Rect{X: 60, Y: 40, Width: 700, Height: 500}, l.Grid)
	assert.Equal(t, 50.0, l.SlotSize)
	assert.Equal(t, 100.0, l.DayThickness)
	require.Len(t, l.Days, 7)
	require.Len(t, l.Slots, 10)

	assert.Equal(t, Rect{X: 160, Y: 0, Width: 100, Height: 40}, l.Days[1].Header)
	assert.Nil(t, l.Days[0].Prev)

	assert.Equal(t, model.MustTimeOfDay(9, 0), l.Slots[1].Time)
	assert.Equal(t, Rect{X: 0, Y: 90, Width: 60, Height: 50}, l.Slots[1].Label)
	assert.Equal(t, Line{From: Point{X: 60, Y: 90}, To: Point{X: 760, Y: 90}}, l.Slots[1].Line)

	a, ok := l.Event("a")
	require.True(t, ok)
	assert.Equal(t, Rect{X: 60, Y: 140, Width: 50, Height: 50}, a.Rect)
	assert.Equal(t, 0, a.Lane)
	assert.Equal(t, 2, a.Lanes)

	b, _ := l.Event("b")
	assert.Equal(t, Rect{X: 110, Y: 165, Width: 50, Height: 50}, b.Rect)

	c, _ := l.Event("c")
	assert.Equal(t, Rect{X: 260, Y: 40, Width: 100, Height: 75}, c.Rect)

	_, ok = l.Event("late")
	assert.False(t, ok, "events outside the visible hours are omitted")
}

func TestHorizontalGeometry(t *testing.T) {
	e := testEngine(t, func(o *Options) { o.Orientation = Horizontal })
	l, err := e.Compute(Input{Width: 540, Height: 760, Events: sampleEvents()})
	require.NoError(t, err)

	assert.Equal(t, Rect{X: 0, Y: 60, Width: 40, Height: 700}, l.HeaderBand)
	assert.Equal(t, Rect{X: 40, Y: 0, Width: 500, Height: 60}, l.TimeAxis)

	a, _ := l.Event("a")
	assert.Equal(t, Rect{X: 140, Y: 60, Width: 50, Height: 50}, a.Rect)
}

func TestOrientationSymmetry(t *testing.T) {
	events := sampleEvents()
	for i := 0; i < 6; i++ {
		events = append(events, ev(fmt.Sprintf("t%d", i), model.Thursday, 9, i*7, 13, 0))
	}

	v, err := testEngine(t).Compute(Input{Width: 913, Height: 487, Events: events, DevicePixelRatio: 2})
	require.NoError(t, err)
	h, err := testEngine(t, func(o *Options) { o.Orientation = Horizontal }).
		Compute(Input{Width: 487, Height: 913, Events: events, DevicePixelRatio: 2})
	require.NoError(t, err)

	require.Equal(t, len(v.Events), len(h.Events))
	for i := range v.Events {
		ve, he := v.Events[i], h.Events[i]
		require.Equal(t, ve.ID, he.ID)
		vs, vEnd := v.AlongFraction(ve.Rect)
		hs, hEnd := h.AlongFraction(he.Rect)
		assert.InDelta(t, vs, hs, 1e-12, ve.ID)
		assert.InDelta(t, vEnd, hEnd, 1e-12, ve.ID)
		assert.Equal(t, ve.Rect.X, he.Rect.Y, ve.ID)
		assert.Equal(t, ve.Rect.Width, he.Rect.Height, ve.ID)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	events := sampleEvents()
	for i := 0; i < 8; i++ {
		events = append(events, ev(fmt.Sprintf("x%d", i), model.Tuesday, 9+i%3, 0, 12, 0))
	}
	e := testEngine(t)
	in := Input{Width: 1001, Height: 777, DevicePixelRatio: 1.5, Events: events}

	first, err := e.Compute(in)
	require.NoError(t, err)
	second, err := e.Compute(in)
	require.NoError(t, err)

	require.Equal(t, len(first.Events), len(second.Events))
	for i := range first.Events {
		assert.Equal(t, first.Events[i].ID, second.Events[i].ID)
		assert.Equal(t, math.Float64bits(first.Events[i].Rect.X), math.Float64bits(second.Events[i].Rect.X))
		assert.Equal(t, math.Float64bits(first.Events[i].Rect.Y), math.Float64bits(second.Events[i].Rect.Y))
		assert.Equal(t, math.Float64bits(first.Events[i].Rect.Width), math.Float64bits(second.Events[i].Rect.Width))
		assert.Equal(t, math.Float64bits(first.Events[i].Rect.Height), math.Float64bits(second.Events[i].Rect.Height))
	}
}

func TestOverflowMarkersUseEventFormula(t *testing.T) {
	var events []model.Event
	for i := 0; i < 5; i++ {
		events = append(events, ev(fmt.Sprintf("t%d", i), model.Thursday, 10, 0, 12, 0))
	}
	l, err := testEngine(t).Compute(Input{Width: 760, Height: 540, Events: events})
	require.NoError(t, err)

	marker, ok := l.Event("overflow-3-t2")
	require.True(t, ok)
	assert.True(t, marker.Overflow)
	assert.Equal(t, "+3 more", marker.Title)
	assert.Equal(t, 2, marker.Lane)
	assert.Equal(t, 3, marker.Lanes)
	assert.InDelta(t, 140.0, marker.Rect.Y, 1e-9)
	assert.InDelta(t, 100.0, marker.Rect.Height, 1e-9)

	_, ok = l.Event("t3")
	assert.False(t, ok)
}

func TestZoomedDayLayout(t *testing.T) {
	var events []model.Event
	for i := 0; i < 5; i++ {
		events = append(events, ev(fmt.Sprintf("t%d", i), model.Thursday, 10, 0, 12, 0))
	}
	events = append(events, ev("m", model.Monday, 9, 0, 10, 0))

	e := testEngine(t, func(o *Options) { o.MinZoomedSlotSize = 80 })
	l, err := e.Compute(Input{Width: 760, Height: 540, Events: events, ZoomedDay: weekday(model.Thursday)})
	require.NoError(t, err)

	require.True(t, l.IsZoomed())
	require.Len(t, l.Days, 1)
	assert.Equal(t, 80.0, l.SlotSize)
	assert.Equal(t, 800.0, l.Content.Height)
	assert.Equal(t, 700.0, l.Days[0].Content.Width)
	assert.Len(t, l.Events, 5, "zoomed view shows every lane and no marker")

	_, ok := l.Event("m")
	assert.False(t, ok)

	require.NotNil(t, l.Days[0].Prev)
	require.NotNil(t, l.Days[0].Next)
	assert.False(t, l.Days[0].Prev.Disabled)
	assert.False(t, l.Days[0].Next.Disabled)
	assert.Equal(t, Rect{X: 60, Y: 6, Width: 28, Height: 28}, l.Days[0].Prev.Rect)
	assert.Equal(t, Rect{X: 732, Y: 6, Width: 28, Height: 28}, l.Days[0].Next.Rect)
}

func TestNavButtonsDisabledAtEnds(t *testing.T) {
	e := testEngine(t)
	order := []model.Weekday{model.Monday, model.Wednesday, model.Friday}

	first, err := e.Compute(Input{Width: 500, Height: 400, ZoomedDay: weekday(model.Monday), VisibleDays: order})
	require.NoError(t, err)
	assert.True(t, first.Days[0].Prev.Disabled)
	assert.False(t, first.Days[0].Next.Disabled)

	last, err := e.Compute(Input{Width: 500, Height: 400, ZoomedDay: weekday(model.Friday), VisibleDays: order})
	require.NoError(t, err)
	assert.False(t, last.Days[0].Prev.Disabled)
	assert.True(t, last.Days[0].Next.Disabled)
	assert.Equal(t, order, last.VisibleDays)

	next, ok := AdjacentDay(order, model.Monday, 1)
	require.True(t, ok)
	assert.Equal(t, model.Wednesday, next)
	_, ok = AdjacentDay(order, model.Friday, 1)
	assert.False(t, ok)
}

func TestDegenerateViewport(t *testing.T) {
	l, err := testEngine(t).Compute(Input{Width: 0, Height: 0, Events: sampleEvents()})
	require.NoError(t, err)

	assert.Len(t, l.Days, 7)
	for _, el := range l.Events {
		assert.GreaterOrEqual(t, el.Rect.Width, 0.0)
		assert.GreaterOrEqual(t, el.Rect.Height, 0.0)
		assert.Zero(t, el.Rect.Area())
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := testEngine(t).Compute(Input{
		Width:  -1,
		Height: math.NaN(),
		Events: []model.Event{ev("a", model.Monday, 11, 0, 10, 0)},
	})
	require.Error(t, err)

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	var fields []string
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"width", "height", "events[0].end"}, fields)
}

func TestComputeRejectsOversizedViewport(t *testing.T) {
	e := testEngine(t)
	fieldsOf := func(in Input) []string {
		t.Helper()
		_, err := e.Compute(in)
		var ve *model.ValidationError
		require.True(t, errors.As(err, &ve), "expected a validation error for %+v", in)
		var fields []string
		for _, f := range ve.Fields {
			fields = append(fields, f.Field)
		}
		return fields
	}

	assert.Equal(t, []string{"width", "height"}, fieldsOf(Input{Width: 200000, Height: 200000}))
	assert.Equal(t, []string{"devicePixelRatio"}, fieldsOf(Input{Width: 800, Height: 600, DevicePixelRatio: 100}))
	assert.Equal(t, []string{"size"}, fieldsOf(Input{Width: 16000, Height: 16000}))
	assert.Equal(t, []string{"size"}, fieldsOf(Input{Width: 4000, Height: 4000, DevicePixelRatio: 4}))

	l, err := e.Compute(Input{Width: 3840, Height: 2160, DevicePixelRatio: 2})
	require.NoError(t, err)
	assert.Equal(t, 3840.0, l.Width)
}

func TestNewRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Grid.EndHour = opts.Grid.StartHour
	opts.LaneGap = -2

	_, err := New(opts)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields, 2)

	opts = DefaultOptions()
	opts.MinZoomedSlotSize = MaxMinZoomedSlotSize + 1
	_, err = New(opts)
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "minZoomedSlotSize", ve.Fields[0].Field)
}

func TestBackgroundEventsSpanDay(t *testing.T) {
	events := []model.Event{
		{ID: "bg", Day: model.Tuesday, Start: model.MustTimeOfDay(8, 0), End: model.MustTimeOfDay(18, 0), Background: true},
		ev("a", model.Tuesday, 9, 0, 10, 0),
		ev("b", model.Tuesday, 9, 0, 10, 0),
	}
	l, err := testEngine(t).Compute(Input{Width: 760, Height: 540, Events: events})
	require.NoError(t, err)

	require.Equal(t, "bg", l.Events[0].ID)
	assert.True(t, l.Events[0].Background)
	assert.Equal(t, Rect{X: 160, Y: 40, Width: 100, Height: 500}, l.Events[0].Rect)
}

func TestLaneGap(t *testing.T) {
	e := testEngine(t, func(o *Options) { o.LaneGap = 4 })
	l, err := e.Compute(Input{Width: 760, Height: 540, Events: sampleEvents()[:2]})
	require.NoError(t, err)

	a, _ := l.Event("a")
	b, _ := l.Event("b")
	assert.Equal(t, 48.0, a.Rect.Width)
	assert.Equal(t, 112.0, b.Rect.X)
}

func TestRectHelpers(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 10}
	assert.True(t, r.Contains(Point{X: 10, Y: 10}))
	assert.False(t, r.Contains(Point{X: 30, Y: 15}))
	assert.Equal(t, Point{X: 20, Y: 15}, r.Center())
	assert.Equal(t, Rect{X: 5, Y: 10, Width: 25, Height: 30}, r.Union(Rect{X: 5, Y: 20, Width: 5, Height: 20}))
	assert.Equal(t, r, r.Union(Rect{X: 100, Y: 100}))

	o := Rect{X: 30, Y: 10, Width: 20, Height: 10}
	assert.False(t, r.Intersects(o))
	assert.Equal(t, r, r.Lerp(o, 0))
	assert.Equal(t, o, r.Lerp(o, 1))
	assert.Equal(t, Rect{X: 20, Y: 10, Width: 20, Height: 10}, r.Lerp(o, 0.5))

	scaled := Vertical.WithAcross(r, Vertical.AcrossCenter(r), 6)
	assert.Equal(t, Rect{X: 17, Y: 10, Width: 6, Height: 10}, scaled)
	assert.Equal(t, 10.0, Horizontal.AcrossSize(r))
}

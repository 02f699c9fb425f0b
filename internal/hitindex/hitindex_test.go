package hitindex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/layout"
	"weekcal/internal/model"
)

func newLayout(t *testing.T, in layout.Input) *layout.ScheduleLayout {
	t.Helper()
	opts := layout.DefaultOptions()
	opts.Grid = model.SlotGrid{StartHour: 8, EndHour: 18, Interval: 60}
	opts.HeaderSize = 40
	opts.AxisSize = 60
	opts.LaneGap = 0
	e, err := layout.New(opts)
	require.NoError(t, err)
	l, err := e.Compute(in)
	require.NoError(t, err)
	return l
}

func ev(id string, day model.Weekday, sh, sm, eh, em int) model.Event {
	return model.Event{ID: id, Day: day, Start: model.MustTimeOfDay(sh, sm), End: model.MustTimeOfDay(eh, em)}
}

func TestSmallestAreaWins(t *testing.T) {
	// A background block and an ordinary event overlap on screen.
	events := []model.Event{
		{ID: "big", Day: model.Monday, Start: model.MustTimeOfDay(8, 0), End: model.MustTimeOfDay(18, 0), Background: true},
		ev("small", model.Monday, 10, 0, 11, 0),
	}
	l := newLayout(t, layout.Input{Width: 760, Height: 540, Events: events})
	ix := Build(l, 0)

	hit, ok := ix.EventAt(layout.Point{X: 100, Y: 160})
	require.True(t, ok)
	assert.Equal(t, "small", hit.ID)

	hit, ok = ix.EventAt(layout.Point{X: 100, Y: 300})
	require.True(t, ok)
	assert.Equal(t, "big", hit.ID)

	res := ix.HitTest(layout.Point{X: 100, Y: 160})
	assert.Equal(t, Event, res.Type)
	assert.Equal(t, "small", res.EventID)
	require.NotNil(t, res.Event)
	assert.Equal(t, model.Monday, res.Day)
}

func TestHitTestClassifiesBands(t *testing.T) {
	l := newLayout(t, layout.Input{Width: 760, Height: 540})
	ix := Build(l, 50)

	tests := []struct {
		name string
		p    layout.Point
		typ  Type
		day  model.Weekday
		slot int
	}{
		{"header", layout.Point{X: 170, Y: 10}, DayHeader, model.Tuesday, -1},
		{"time label", layout.Point{X: 10, Y: 95}, TimeSlot, model.Monday, 1},
		{"empty grid", layout.Point{X: 700, Y: 500}, Grid, model.Sunday, 9},
		{"corner", layout.Point{X: 10, Y: 10}, None, model.Monday, -1},
		{"outside", layout.Point{X: 900, Y: 900}, None, model.Monday, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ix.HitTest(tt.p)
			assert.Equal(t, tt.typ, res.Type)
			assert.Equal(t, tt.day, res.Day)
			assert.Equal(t, tt.slot, res.Slot)
			assert.Equal(t, tt.p, res.Point)
		})
	}
}

func TestDisabledNavButtonIsNone(t *testing.T) {
	monday := model.Monday
	l := newLayout(t, layout.Input{Width: 760, Height: 540, ZoomedDay: &monday})
	ix := Build(l, 50)

	prev := l.Days[0].Prev.Rect.Center()
	next := l.Days[0].Next.Rect.Center()

	assert.Equal(t, None, ix.HitTest(prev).Type)
	res := ix.HitTest(next)
	assert.Equal(t, NextDayButton, res.Type)
	assert.Equal(t, model.Monday, res.Day)

	sunday := model.Sunday
	l = newLayout(t, layout.Input{Width: 760, Height: 540, ZoomedDay: &sunday})
	ix = Build(l, 50)
	assert.Equal(t, PrevDayButton, ix.HitTest(l.Days[0].Prev.Rect.Center()).Type)
	assert.Equal(t, None, ix.HitTest(l.Days[0].Next.Rect.Center()).Type)
}

func TestEventsInDeduplicates(t *testing.T) {
	var events []model.Event
	for i := 0; i < 3; i++ {
		events = append(events, ev(fmt.Sprintf("e%d", i), model.Wednesday, 8+i*3, 0, 10+i*3, 0))
	}
	events = append(events, ev("fri", model.Friday, 9, 0, 10, 0))

	l := newLayout(t, layout.Input{Width: 760, Height: 540, Events: events})
	ix := Build(l, 20)

	wed, ok := l.Day(model.Wednesday)
	require.True(t, ok)
	hits := ix.EventsIn(wed.Content)

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"e0", "e1", "e2"}, ids)

	assert.Len(t, ix.EventsIn(l.Content), 4)
	assert.Empty(t, ix.EventsIn(layout.Rect{X: 0, Y: 0, Width: 50, Height: 30}))
}

func TestBuildCapsGrid(t *testing.T) {
	opts := layout.DefaultOptions()
	opts.Grid = model.SlotGrid{StartHour: 0, EndHour: 24, Interval: 15}
	opts.MinZoomedSlotSize = layout.MaxMinZoomedSlotSize
	e, err := layout.New(opts)
	require.NoError(t, err)
	mon := model.Monday
	l, err := e.Compute(layout.Input{
		Width:     760,
		Height:    540,
		ZoomedDay: &mon,
		Events:    []model.Event{ev("all", model.Monday, 0, 0, 23, 59)},
	})
	require.NoError(t, err)
	require.Greater(t, l.Content.Height, 90000.0)

	limit := (maxCellsPerAxis + 1) * (maxCellsPerAxis + 1)
	ix := Build(l, 50)
	assert.LessOrEqual(t, len(ix.cells), limit)
	el, ok := ix.EventAt(l.Events[0].Rect.Center())
	require.True(t, ok)
	assert.Equal(t, "all", el.ID)

	tiny := Build(newLayout(t, layout.Input{Width: 760, Height: 540, Events: []model.Event{ev("a", model.Monday, 8, 0, 18, 0)}}), 0.01)
	assert.LessOrEqual(t, len(tiny.cells), limit)
	assert.Len(t, tiny.EventsIn(layout.Rect{X: -1e9, Y: -1e9, Width: 2e9, Height: 2e9}), 1)
}

func TestEventAtMatchesLinearScan(t *testing.T) {
	var events []model.Event
	for i := 0; i < 20; i++ {
		events = append(events, ev(fmt.Sprintf("e%02d", i), model.Weekday(i%7), 8+i%9, (i*7)%60, 17, 30))
	}
	l := newLayout(t, layout.Input{Width: 1000, Height: 700, Events: events})
	ix := Build(l, 37)

	for x := 0.0; x < 1000; x += 13 {
		for y := 0.0; y < 700; y += 11 {
			p := layout.Point{X: x, Y: y}
			want := ""
			wantArea := 0.0
			for _, el := range l.Events {
				if el.Rect.Contains(p) && (want == "" || el.Rect.Area() <= wantArea) {
					want, wantArea = el.ID, el.Rect.Area()
				}
			}
			got, ok := ix.EventAt(p)
			if want == "" {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			assert.Equal(t, want, got.ID)
		}
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "prev-day-button", PrevDayButton.String())
	assert.Equal(t, "unknown", Type(42).String())
}

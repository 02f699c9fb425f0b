package overlap

import (
	"fmt"
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

func withPriority(e model.Event, p int) model.Event {
	e.Priority = p
	return e
}

func TestThreeOverlappingEventsFitWithoutOverflow(t *testing.T) {
	events := []model.Event{
		ev("a", model.Monday, 10, 0, 11, 0),
		ev("b", model.Monday, 10, 30, 11, 30),
		ev("c", model.Monday, 10, 45, 11, 15),
	}

	res := ResolveDay(model.Monday, events, Options{Compress: true})

	assert.Equal(t, Assignment{Lane: 0, TotalLanes: 3}, res.Assignments["a"])
	assert.Equal(t, Assignment{Lane: 1, TotalLanes: 3}, res.Assignments["b"])
	assert.Equal(t, Assignment{Lane: 2, TotalLanes: 3}, res.Assignments["c"])
	assert.Len(t, res.Visible, 3)
	assert.Empty(t, res.Overflow)
	assert.Empty(t, res.Hidden)
	assert.Equal(t, 2, res.MaxLane)
}

func TestSixMutuallyOverlappingEventsProduceOneMarker(t *testing.T) {
	var events []model.Event
	for i := 0; i < 6; i++ {
		events = append(events, ev(fmt.Sprintf("e%d", i), model.Thursday, 9, i*5, 12, i*5))
	}

	res := ResolveDay(model.Thursday, events, Options{Compress: true})

	require.Len(t, res.Overflow, 1)
	require.Len(t, res.Visible, 2)
	assert.Len(t, res.Hidden, 4)

	marker := res.Overflow[0].Event
	require.NotNil(t, marker.Overflow)
	assert.Equal(t, "+4 more", marker.Title)
	assert.Equal(t, 4, marker.Overflow.Count)
	assert.Equal(t, []string{"e2", "e3", "e4", "e5"}, marker.Overflow.MemberIDs)
	assert.Equal(t, model.MustTimeOfDay(9, 10), marker.Start)
	assert.Equal(t, model.MustTimeOfDay(12, 25), marker.End)
	assert.Equal(t, "overflow-3-e2", marker.ID)

	// Two visible lanes plus the overflow lane.
	assert.Equal(t, 2, res.Overflow[0].Lane)
	assert.Equal(t, 3, res.Overflow[0].Lanes)
	for _, p := range res.Visible {
		assert.Equal(t, 3, p.Lanes)
	}
}

func TestUncompressedKeepsEveryLane(t *testing.T) {
	var events []model.Event
	for i := 0; i < 5; i++ {
		events = append(events, ev(fmt.Sprintf("e%d", i), model.Friday, 9, 0, 10, 0))
	}

	res := ResolveDay(model.Friday, events, Options{})

	assert.Len(t, res.Visible, 5)
	assert.Empty(t, res.Overflow)
	for _, p := range res.Visible {
		assert.Less(t, p.Lane, p.Lanes)
		assert.Equal(t, 5, p.Lanes)
	}
}

func TestLaneInvariants(t *testing.T) {
	events := []model.Event{
		ev("a", model.Tuesday, 8, 0, 9, 0),
		ev("b", model.Tuesday, 8, 30, 10, 0),
		ev("c", model.Tuesday, 9, 0, 9, 30),
		ev("d", model.Tuesday, 9, 15, 11, 0),
		ev("e", model.Tuesday, 12, 0, 13, 0),
		ev("f", model.Tuesday, 12, 30, 12, 45),
		ev("g", model.Tuesday, 15, 0, 16, 0),
	}

	res := ResolveDay(model.Tuesday, events, Options{Compress: true})

	// First cluster a..d needs three lanes, second two, third one.
	assert.Equal(t, 3, res.Assignments["a"].TotalLanes)
	assert.Equal(t, 3, res.Assignments["d"].TotalLanes)
	assert.Equal(t, 2, res.Assignments["e"].TotalLanes)
	assert.Equal(t, 1, res.Assignments["g"].TotalLanes)

	for id, a := range res.Assignments {
		assert.Less(t, a.Lane, a.TotalLanes, id)
	}

	byLane := make(map[int][]model.Event)
	for _, p := range res.Visible {
		byLane[p.Lane] = append(byLane[p.Lane], p.Event)
	}
	for lane, evs := range byLane {
		for i := range evs {
			for j := i + 1; j < len(evs); j++ {
				// Same display lane across clusters never overlaps; within a
				// cluster greedy assignment guarantees it.
				if res.Assignments[evs[i].ID].TotalLanes == res.Assignments[evs[j].ID].TotalLanes {
					assert.False(t, evs[i].Overlaps(evs[j]), "lane %d: %s overlaps %s", lane, evs[i].ID, evs[j].ID)
				}
			}
		}
	}
}

func TestPrioritySwapPromotesHiddenLane(t *testing.T) {
	events := []model.Event{
		ev("a", model.Wednesday, 9, 0, 12, 0),
		ev("b", model.Wednesday, 9, 10, 12, 0),
		ev("c", model.Wednesday, 9, 20, 12, 0),
		withPriority(ev("d", model.Wednesday, 9, 30, 12, 0), 10),
	}

	res := ResolveDay(model.Wednesday, events, Options{Compress: true})

	visible := make(map[string]bool)
	for _, p := range res.Visible {
		visible[p.Event.ID] = true
	}
	// d (lane 3) swaps with b (lane 1): ties on the visible side demote the
	// higher lane.
	assert.True(t, visible["a"])
	assert.True(t, visible["d"])
	assert.False(t, visible["b"])
	assert.ElementsMatch(t, []string{"b", "c"}, res.Hidden)

	require.Len(t, res.Overflow, 1)
	assert.Equal(t, 2, res.Overflow[0].Event.Overflow.Count)
}

func TestPrioritySwapTieKeepsHigherHiddenLane(t *testing.T) {
	events := []model.Event{
		ev("a", model.Tuesday, 9, 0, 12, 0),
		ev("b", model.Tuesday, 9, 10, 12, 0),
		withPriority(ev("c", model.Tuesday, 9, 20, 12, 0), 10),
		withPriority(ev("d", model.Tuesday, 9, 30, 12, 0), 10),
	}

	res := ResolveDay(model.Tuesday, events, Options{Compress: true})

	visible := make(map[string]bool)
	for _, p := range res.Visible {
		visible[p.Event.ID] = true
	}
	// c (lane 2) and d (lane 3) tie; the lower lane is promoted over b.
	assert.True(t, visible["a"])
	assert.True(t, visible["c"])
	assert.False(t, visible["d"])
	assert.ElementsMatch(t, []string{"b", "d"}, res.Hidden)

	require.Len(t, res.Overflow, 1)
	assert.ElementsMatch(t, []string{"b", "d"}, res.Overflow[0].Event.Overflow.MemberIDs)
}

func TestPrioritySwapRequiresStrictlyHigher(t *testing.T) {
	events := []model.Event{
		withPriority(ev("a", model.Monday, 9, 0, 12, 0), 5),
		withPriority(ev("b", model.Monday, 9, 10, 12, 0), 5),
		withPriority(ev("c", model.Monday, 9, 20, 12, 0), 5),
		withPriority(ev("d", model.Monday, 9, 30, 12, 0), 5),
	}

	res := ResolveDay(model.Monday, events, Options{Compress: true})
	assert.Equal(t, []string{"c", "d"}, res.Hidden)
}

func TestEveryHiddenEventInExactlyOneMarker(t *testing.T) {
	events := []model.Event{
		ev("a", model.Saturday, 8, 0, 12, 0),
		ev("b", model.Saturday, 8, 0, 12, 0),
		ev("c", model.Saturday, 8, 0, 9, 0),
		ev("d", model.Saturday, 10, 0, 11, 0),
		ev("e", model.Saturday, 10, 30, 11, 30),
	}

	res := ResolveDay(model.Saturday, events, Options{Compress: true})

	seen := make(map[string]int)
	for _, o := range res.Overflow {
		for _, id := range o.Event.Overflow.MemberIDs {
			seen[id]++
		}
	}
	require.Len(t, seen, len(res.Hidden))
	for _, id := range res.Hidden {
		assert.Equal(t, 1, seen[id], id)
	}

	// c (08:00-09:00) and d/e (10:00-11:30) do not chain: two markers.
	require.Len(t, res.Overflow, 2)
	assert.Equal(t, []string{"c"}, res.Overflow[0].Event.Overflow.MemberIDs)
	assert.Equal(t, "+1 more", res.Overflow[0].Event.Title)

	span := res.Overflow[1].Event
	assert.Equal(t, model.MustTimeOfDay(10, 0), span.Start)
	assert.Equal(t, model.MustTimeOfDay(11, 30), span.End)
}

func TestCustomLabelAndBackground(t *testing.T) {
	events := []model.Event{
		ev("a", model.Sunday, 8, 0, 9, 0),
		ev("b", model.Sunday, 8, 0, 9, 0),
		ev("c", model.Sunday, 8, 0, 9, 0),
		ev("d", model.Sunday, 8, 0, 9, 0),
		{ID: "bg", Day: model.Sunday, Start: model.MustTimeOfDay(8, 0), End: model.MustTimeOfDay(18, 0), Background: true},
	}

	res := ResolveDay(model.Sunday, events, Options{
		Compress: true,
		Label:    func(n int) string { return fmt.Sprintf("%d hidden", n) },
	})

	require.Len(t, res.Overflow, 1)
	assert.Equal(t, "2 hidden", res.Overflow[0].Event.Title)
	require.Len(t, res.Background, 1)
	_, laned := res.Assignments["bg"]
	assert.False(t, laned)
}

func TestEmptyDay(t *testing.T) {
	res := ResolveDay(model.Monday, nil, Options{Compress: true})
	assert.Equal(t, -1, res.MaxLane)
	assert.Empty(t, res.Visible)
	assert.Empty(t, res.Overflow)
}

func TestResolveIsDeterministic(t *testing.T) {
	events := []model.Event{
		ev("z", model.Monday, 9, 0, 10, 0),
		ev("y", model.Monday, 9, 0, 10, 0),
		ev("x", model.Monday, 9, 0, 10, 0),
		ev("w", model.Monday, 9, 0, 10, 0),
	}
	reversed := []model.Event{events[3], events[2], events[1], events[0]}

	a := ResolveDay(model.Monday, events, Options{Compress: true})
	b := ResolveDay(model.Monday, reversed, Options{Compress: true})
	assert.Equal(t, a, b)
	assert.Equal(t, 0, a.Assignments["w"].Lane)
}

func TestAnchorID(t *testing.T) {
	day, anchor, ok := AnchorID(OverflowID(model.Thursday, "evt-7"))
	require.True(t, ok)
	assert.Equal(t, model.Thursday, day)
	assert.Equal(t, "evt-7", anchor)

	_, _, ok = AnchorID("evt-7")
	assert.False(t, ok)
	_, _, ok = AnchorID("overflow-9-x")
	assert.False(t, ok)
}

func TestResolveSplitsByDay(t *testing.T) {
	out := Resolve([]model.Event{
		ev("a", model.Monday, 9, 0, 10, 0),
		ev("b", model.Tuesday, 9, 0, 10, 0),
	}, Options{})
	assert.Len(t, out, 2)
	assert.Len(t, out[model.Tuesday].Visible, 1)
}

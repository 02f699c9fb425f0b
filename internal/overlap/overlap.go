package overlap

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

const (
	// maxLaneFullView is the highest lane index for which every lane of a day
	// stays visible in the compressed view.
	maxLaneFullView = 2
	// compressedLanes is how many lanes remain visible once a day exceeds it.
	compressedLanes = 2
)

// LabelFunc renders the title of an overflow marker.
type LabelFunc func(count int) string

// DefaultLabel renders "+N more".
func DefaultLabel(count int) string {
	return fmt.Sprintf("+%d more", count)
}

// Options controls a resolver pass.
type Options struct {
	// Compress hides lanes beyond the visibility threshold and synthesizes
	// overflow markers. The zoomed single-day view runs uncompressed.
	Compress bool
	// Label titles overflow markers. If nil, DefaultLabel is used.
	Label LabelFunc
}

// Assignment is the raw lane of an event inside its overlap cluster.
type Assignment struct {
	Lane       int
	TotalLanes int
}

// Placement is an event positioned on display lanes. After compression the
// display lanes differ from the raw assignment: visible raw lanes are ranked
// and overflow markers take one extra trailing lane.
type Placement struct {
	Event model.Event
	Lane  int
	Lanes int
}

// DayResult is the resolver output for one day.
type DayResult struct {
	Day model.Weekday

	// Assignments holds the raw lane of every foreground event by id.
	Assignments map[string]Assignment

	Background []model.Event
	Visible    []Placement
	Overflow   []Placement
	// Hidden lists ids folded into overflow markers, in lane sort order.
	Hidden []string

	// MaxLane is the highest raw lane index used that day, -1 when empty.
	MaxLane int
}

// Resolve runs ResolveDay for every day that has events.
func Resolve(events []model.Event, opts Options) map[model.Weekday]DayResult {
	out := make(map[model.Weekday]DayResult)
	for day, evs := range model.EventsByDay(events) {
		out[day] = ResolveDay(day, evs, opts)
	}
	return out
}

type cluster struct {
	members []int // indexes into the sorted slice
	lanes   int
}

// ResolveDay assigns lanes to the events of a single day. Events whose Day
// differs from day are resolved as if they belonged to it; callers filter.
func ResolveDay(day model.Weekday, events []model.Event, opts Options) DayResult {
	res := DayResult{
		Day:         day,
		Assignments: make(map[string]Assignment, len(events)),
		MaxLane:     -1,
	}
	label := opts.Label
	if label == nil {
		label = DefaultLabel
	}

	fg := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Background {
			res.Background = append(res.Background, ev)
			continue
		}
		fg = append(fg, ev)
	}
	sortEvents(res.Background)
	sortEvents(fg)

	if len(fg) == 0 {
		return res
	}

	laneOf, clusters := assignLanes(fg)
	for _, c := range clusters {
		if c.lanes-1 > res.MaxLane {
			res.MaxLane = c.lanes - 1
		}
		for _, i := range c.members {
			res.Assignments[fg[i].ID] = Assignment{Lane: laneOf[i], TotalLanes: c.lanes}
		}
	}

	if !opts.Compress || res.MaxLane <= maxLaneFullView {
		for _, c := range clusters {
			for _, i := range c.members {
				res.Visible = append(res.Visible, Placement{Event: fg[i], Lane: laneOf[i], Lanes: c.lanes})
			}
		}
		return res
	}

	visible := visibleLanes(fg, laneOf, res.MaxLane)

	for _, c := range clusters {
		// Visible raw lanes of this cluster, ranked into display lanes.
		rank := make(map[int]int)
		for lane := 0; lane < c.lanes; lane++ {
			if visible[lane] {
				rank[lane] = len(rank)
			}
		}

		var hidden []model.Event
		for _, i := range c.members {
			if !visible[laneOf[i]] {
				hidden = append(hidden, fg[i])
			}
		}
		display := len(rank)
		if len(hidden) > 0 {
			display++
		}

		for _, i := range c.members {
			if r, ok := rank[laneOf[i]]; ok {
				res.Visible = append(res.Visible, Placement{Event: fg[i], Lane: r, Lanes: display})
			}
		}
		for _, ev := range hidden {
			res.Hidden = append(res.Hidden, ev.ID)
		}
		for _, group := range chainClusters(hidden) {
			marker := overflowMarker(day, group, label)
			res.Overflow = append(res.Overflow, Placement{Event: marker, Lane: display - 1, Lanes: display})
		}
	}

	appLog.Debug("overlap: day compressed",
		"day", day.String(),
		"max_lane", res.MaxLane,
		"hidden", len(res.Hidden),
		"markers", len(res.Overflow),
	)
	return res
}

// sortEvents orders by start asc, end desc, id asc. Every lane decision
// depends on this order, so it must be total.
func sortEvents(evs []model.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.StartMinutes() != b.StartMinutes() {
			return a.StartMinutes() < b.StartMinutes()
		}
		if a.EndMinutes() != b.EndMinutes() {
			return a.EndMinutes() > b.EndMinutes()
		}
		return a.ID < b.ID
	})
}

// assignLanes sweeps the sorted events once, cutting clusters where the next
// start is at or past the running maximum end, and greedily packs each event
// into the lowest lane whose last event has ended.
func assignLanes(sorted []model.Event) ([]int, []cluster) {
	laneOf := make([]int, len(sorted))
	var clusters []cluster

	var cur cluster
	var laneEnds []int
	clusterEnd := math.MinInt

	flush := func() {
		if len(cur.members) > 0 {
			cur.lanes = len(laneEnds)
			clusters = append(clusters, cur)
		}
		cur = cluster{}
		laneEnds = laneEnds[:0]
	}

	for i, ev := range sorted {
		if ev.StartMinutes() >= clusterEnd {
			flush()
			clusterEnd = math.MinInt
		}
		lane := -1
		for l, end := range laneEnds {
			if end <= ev.StartMinutes() {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, 0)
		}
		laneEnds[lane] = ev.EndMinutes()
		laneOf[i] = lane
		cur.members = append(cur.members, i)
		if ev.EndMinutes() > clusterEnd {
			clusterEnd = ev.EndMinutes()
		}
	}
	flush()
	return laneOf, clusters
}

// visibleLanes applies the visibility threshold and the single
// best-hidden-for-worst-visible priority swap.
func visibleLanes(sorted []model.Event, laneOf []int, maxLane int) []bool {
	visible := make([]bool, maxLane+1)
	for l := 0; l < compressedLanes; l++ {
		visible[l] = true
	}

	priority := make([]int, maxLane+1)
	for l := range priority {
		priority[l] = math.MinInt
	}
	for i, ev := range sorted {
		if ev.Priority > priority[laneOf[i]] {
			priority[laneOf[i]] = ev.Priority
		}
	}

	best, worst := -1, -1
	for l := 0; l <= maxLane; l++ {
		if visible[l] {
			// Ties demote the higher lane.
			if worst < 0 || priority[l] <= priority[worst] {
				worst = l
			}
		} else if best < 0 || priority[l] > priority[best] {
			// Ties promote the lower lane, keeping higher lanes hidden.
			best = l
		}
	}
	if best >= 0 && worst >= 0 && priority[best] > priority[worst] {
		visible[best], visible[worst] = true, false
		appLog.Debug("overlap: lane priority swap", "promoted", best, "demoted", worst)
	}
	return visible
}

// chainClusters groups sorted events whose intervals chain by overlap.
func chainClusters(sorted []model.Event) [][]model.Event {
	var out [][]model.Event
	var cur []model.Event
	end := math.MinInt
	for _, ev := range sorted {
		if len(cur) > 0 && ev.StartMinutes() >= end {
			out = append(out, cur)
			cur = nil
			end = math.MinInt
		}
		cur = append(cur, ev)
		if ev.EndMinutes() > end {
			end = ev.EndMinutes()
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func overflowMarker(day model.Weekday, members []model.Event, label LabelFunc) model.Event {
	ids := make([]string, 0, len(members))
	start, end := members[0].StartMinutes(), members[0].EndMinutes()
	prio := members[0].Priority
	for _, m := range members {
		ids = append(ids, m.ID)
		if m.StartMinutes() < start {
			start = m.StartMinutes()
		}
		if m.EndMinutes() > end {
			end = m.EndMinutes()
		}
		if m.Priority > prio {
			prio = m.Priority
		}
	}
	return model.Event{
		ID:       OverflowID(day, ids[0]),
		Day:      day,
		Start:    model.TimeFromMinutes(start),
		End:      model.TimeFromMinutes(end),
		Priority: prio,
		Title:    label(len(members)),
		Overflow: &model.Overflow{Count: len(members), MemberIDs: ids},
	}
}

// OverflowID builds the marker id overflow-<day>-<anchorId>.
func OverflowID(day model.Weekday, anchorID string) string {
	return model.OverflowIDPrefix + strconv.Itoa(int(day)) + "-" + anchorID
}

// AnchorID recovers the day and anchor event id from an overflow marker id.
func AnchorID(id string) (model.Weekday, string, bool) {
	rest, ok := strings.CutPrefix(id, model.OverflowIDPrefix)
	if !ok {
		return 0, "", false
	}
	dayStr, anchor, ok := strings.Cut(rest, "-")
	if !ok || anchor == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(dayStr)
	if err != nil || !model.Weekday(n).Valid() {
		return 0, "", false
	}
	return model.Weekday(n), anchor, true
}

package source

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

const maxOccurrencesPerEvent = 500

// vevent is the subset of a VEVENT the week projection needs.
type vevent struct {
	UID      string
	Summary  string
	Priority int

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time
}

// parseICS decodes every VEVENT of body. Malformed components are logged
// and skipped.
func parseICS(feed Feed, body []byte) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("source: empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", feed.ID, err)
	}

	out := make([]vevent, 0, len(cal.Events()))
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "id", feed.ID)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty("PRIORITY"); p != nil {
		// RFC 5545: 1 is highest, 9 lowest, 0 undefined.
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil && n >= 1 && n <= 9 {
			out.Priority = 10 - n
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart != nil {
		if vs := dtStart.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dtStart.Value, "T") {
			out.AllDay = true
		}
	}

	end, err := ve.GetEndAt()
	switch {
	case err == nil:
		out.End = end
	case out.AllDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}
	if out.AllDay {
		out.Start = midnight(out.Start)
		if !out.End.After(out.Start) {
			out.End = out.Start.AddDate(0, 0, 1)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	loc := out.Start.Location()
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := paramLocation(p.ICalParameters, loc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, exLoc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, paramLocation(p.ICalParameters, loc)); err == nil {
			out.Recurrence = &t
		}
	}
	return out, nil
}

func paramLocation(params map[string][]string, fallback *time.Location) *time.Location {
	if tz := params["TZID"]; len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return fallback
}

// parseICSTime parses DATE, local DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// occurrences expands ev into the concrete [start,end) instances that touch
// [from, to), applying EXDATEs and RECURRENCE-ID overrides.
func occurrences(ev vevent, overrides []vevent, from, to time.Time) [][2]time.Time {
	dur := ev.End.Sub(ev.Start)
	override := func(start time.Time) (time.Time, time.Time) {
		for _, o := range overrides {
			if o.Recurrence != nil && o.Recurrence.Equal(start) {
				return o.Start, o.End
			}
		}
		return start, start.Add(dur)
	}

	if ev.RRule == "" {
		s, e := override(ev.Start)
		if e.After(from) && s.Before(to) {
			return [][2]time.Time{{s, e}}
		}
		return nil
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics RRULE rejected", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)
	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(from.Add(-dur).In(loc), to.In(loc), true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Error("ics occurrences truncated", errors.New("max occurrences reached"), "uid", ev.UID)
		starts = starts[:maxOccurrencesPerEvent]
	}
	out := make([][2]time.Time, 0, len(starts))
	for _, st := range starts {
		s, e := override(st)
		if e.After(from) && s.Before(to) {
			out = append(out, [2]time.Time{s, e})
		}
	}
	return out
}

// ICSEvents projects the occurrences of an ICS payload that fall inside the
// week starting at weekStart onto weekday events in loc. Instances crossing
// midnight are split per day; all-day instances become background events.
func ICSEvents(feed Feed, body []byte, weekStart time.Time, loc *time.Location) ([]model.Event, error) {
	vevents, err := parseICS(feed, body)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	from := midnight(weekStart.In(loc))
	to := from.AddDate(0, 0, model.DaysPerWeek)

	base := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	var order []string
	for _, ev := range vevents {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := base[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		base[ev.UID] = append(base[ev.UID], ev)
	}

	var out []model.Event
	seen := make(map[string]bool)
	for _, uid := range order {
		for _, ev := range base[uid] {
			for _, occ := range occurrences(ev, overrides[uid], from, to) {
				start, end := occ[0].In(loc), occ[1].In(loc)
				if ev.AllDay {
					// Dates are floating: keep the calendar day, not the instant.
					start, end = sameDate(occ[0], loc), sameDate(occ[1], loc)
				}
				for _, e := range splitDays(feed, ev, start, end, from, to) {
					if seen[e.ID] {
						continue
					}
					seen[e.ID] = true
					out = append(out, e)
				}
			}
		}
	}
	appLog.Debug("ics projected", "id", feed.ID, "vevents", len(vevents), "events", len(out))
	return out, nil
}

// splitDays cuts [start,end) at local midnights, keeping the pieces inside
// [from,to). A piece reaching midnight ends at 23:59.
func splitDays(feed Feed, ev vevent, start, end, from, to time.Time) []model.Event {
	var out []model.Event
	for day := midnight(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		if day.Before(from) || !day.Before(to) {
			continue
		}
		next := day.AddDate(0, 0, 1)
		segStart, segEnd := start, end
		if segStart.Before(day) {
			segStart = day
		}

		e := model.Event{
			ID:         fmt.Sprintf("%s:%s:%s", feed.ID, ev.UID, segStart.Format("20060102T1504")),
			Day:        model.WeekdayFromTime(day.Weekday()),
			Start:      model.TimeOfDayOf(segStart),
			Priority:   ev.Priority,
			Title:      ev.Summary,
			Color:      feed.Color,
			Background: ev.AllDay,
			Meta:       map[string]string{"source": feed.ID, "uid": ev.UID},
		}
		if segEnd.Before(next) {
			e.End = model.TimeOfDayOf(segEnd)
		} else {
			e.End = model.TimeFromMinutes(24*60 - 1)
		}
		if e.End.Minutes() <= e.Start.Minutes() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

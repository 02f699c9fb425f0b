package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"weekcal/internal/config"
	"weekcal/internal/model"
)

// namespace derives stable ids for configured events that have none.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("weekcal:events"))

// maxCronEvents bounds the expansion of one cron entry ("* * * * *" would
// otherwise produce an event per minute of the week).
const maxCronEvents = 500

// cronStar marks a field written as "*" in a parsed SpecSchedule.
const cronStar = 1 << 63

// StaticEvents converts configured events. Fixed events map one-to-one;
// cron events expand to one event per matching weekday and start time.
func StaticEvents(cfgs []config.EventConfig) ([]model.Event, error) {
	var out []model.Event
	for i, c := range cfgs {
		if c.Cron != "" {
			evs, err := CronEvents(c)
			if err != nil {
				return nil, fmt.Errorf("source: events[%d]: %w", i, err)
			}
			out = append(out, evs...)
			continue
		}
		ev, err := staticEvent(c)
		if err != nil {
			return nil, fmt.Errorf("source: events[%d]: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func staticEvent(c config.EventConfig) (model.Event, error) {
	day, err := model.ParseWeekday(c.Day)
	if err != nil {
		return model.Event{}, err
	}
	start, err := model.ParseTimeOfDay(c.Start)
	if err != nil {
		return model.Event{}, err
	}
	end, err := model.ParseTimeOfDay(c.End)
	if err != nil {
		return model.Event{}, err
	}
	id := c.ID
	if id == "" {
		id = derivedID(c.Title, c.Day, c.Start, c.End)
	}
	return model.Event{
		ID:         id,
		Day:        day,
		Start:      start,
		End:        end,
		Priority:   c.Priority,
		Title:      c.Title,
		Color:      c.Color,
		Background: c.Background,
		Meta:       map[string]string{"source": "config"},
	}, nil
}

// CronEvents expands a cron-spec event over one week. Only the minute, hour
// and day-of-week fields may be restricted; day-of-month and month must be
// "*". Durations that run past midnight are clipped to 23:59.
func CronEvents(c config.EventConfig) ([]model.Event, error) {
	sched, err := cron.ParseStandard(c.Cron)
	if err != nil {
		return nil, err
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("cron %q is not a calendar schedule", c.Cron)
	}
	if spec.Dom&cronStar == 0 || spec.Month&cronStar == 0 {
		return nil, fmt.Errorf("cron %q: day-of-month and month must be *", c.Cron)
	}
	dur, err := time.ParseDuration(c.Duration)
	if err != nil || dur <= 0 {
		return nil, fmt.Errorf("cron %q: invalid duration %q", c.Cron, c.Duration)
	}

	base := c.ID
	if base == "" {
		base = derivedID(c.Title, c.Cron, c.Duration)
	}

	var out []model.Event
	for _, day := range model.AllWeekdays() {
		// SpecSchedule numbers weekdays from Sunday.
		if spec.Dow&(1<<uint((int(day)+1)%model.DaysPerWeek)) == 0 {
			continue
		}
		for h := 0; h < 24; h++ {
			if spec.Hour&(1<<uint(h)) == 0 {
				continue
			}
			for m := 0; m < 60; m++ {
				if spec.Minute&(1<<uint(m)) == 0 {
					continue
				}
				if len(out) >= maxCronEvents {
					return nil, fmt.Errorf("cron %q expands to more than %d events", c.Cron, maxCronEvents)
				}
				start := model.MustTimeOfDay(h, m)
				end := model.TimeFromMinutes(start.Minutes() + int(dur/time.Minute))
				if end.Minutes() <= start.Minutes() {
					continue
				}
				out = append(out, model.Event{
					ID:         fmt.Sprintf("%s@%s-%02d%02d", base, strings.ToLower(day.Short()), h, m),
					Day:        day,
					Start:      start,
					End:        end,
					Priority:   c.Priority,
					Title:      c.Title,
					Color:      c.Color,
					Background: c.Background,
					Meta:       map[string]string{"source": "cron", "cron": c.Cron},
				})
			}
		}
	}
	return out, nil
}

func derivedID(parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "\x00"))).String()
}

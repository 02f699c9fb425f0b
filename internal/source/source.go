// Package source turns configured events, cron specs and ICS feeds into the
// flat list of weekly events the layout engine consumes.
package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"weekcal/internal/config"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// WeekStart returns local midnight of the first day of the week containing
// now. weekStart is "monday" or "sunday".
func WeekStart(now time.Time, weekStart string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t := midnight(now.In(loc))
	first := model.WeekOrder(weekStart)[0]
	back := (int(model.WeekdayFromTime(t.Weekday())) - int(first) + model.DaysPerWeek) % model.DaysPerWeek
	return t.AddDate(0, 0, -back)
}

// Collect gathers events from every configured source. A failing feed does
// not stop the others: the events that could be loaded are returned along
// with the combined error. Later duplicates of an id are dropped.
func Collect(ctx context.Context, cfg *config.Config, fetcher *Fetcher, now time.Time) ([]model.Event, error) {
	var errs error

	events, err := StaticEvents(cfg.Events)
	if err != nil {
		errs = multierr.Append(errs, err)
		events = nil
	}

	if len(cfg.ICS) > 0 {
		if fetcher == nil {
			fetcher = NewFetcher("", nil)
		}
		loc := cfg.Location()
		week := WeekStart(now, cfg.WeekStart, loc)
		for _, ic := range cfg.ICS {
			feed := Feed{ID: ic.ID, URL: ic.URL, Path: ic.Path, Color: ic.Color}
			res, err := fetcher.Fetch(ctx, feed)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			evs, err := ICSEvents(feed, res.Body, week, loc)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			events = append(events, evs...)
		}
	}

	seen := make(map[string]bool, len(events))
	out := events[:0]
	for _, ev := range events {
		if seen[ev.ID] {
			errs = multierr.Append(errs, fmt.Errorf("source: duplicate event id %q dropped", ev.ID))
			continue
		}
		seen[ev.ID] = true
		out = append(out, ev)
	}

	appLog.Info("sources collected", "events", len(out), "feeds", len(cfg.ICS), "errors", len(multierr.Errors(errs)))
	return out, errs
}

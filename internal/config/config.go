package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"weekcal/internal/layout"
	"weekcal/internal/model"
)

// ICSConfig describes a single ICS source. Exactly one of URL or Path is
// expected.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path reads a local .ics file instead of fetching.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// ID is an internal identifier used for event ids and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Color is applied to every event of the feed.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ScheduleConfig shapes the weekly grid.
type ScheduleConfig struct {
	StartHour   int `yaml:"start_hour" json:"start_hour"`
	EndHour     int `yaml:"end_hour" json:"end_hour"`
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes"`

	// Orientation is "vertical" (days as columns) or "horizontal".
	Orientation string `yaml:"orientation" json:"orientation"`

	// VisibleDays is the normal-view order. When empty it is derived from
	// WeekStart.
	VisibleDays []string `yaml:"visible_days,omitempty" json:"visible_days,omitempty"`

	HeaderSize        float64 `yaml:"header_size" json:"header_size"`
	AxisSize          float64 `yaml:"axis_size" json:"axis_size"`
	NavButtonSize     float64 `yaml:"nav_button_size" json:"nav_button_size"`
	LaneGap           float64 `yaml:"lane_gap" json:"lane_gap"`
	MinZoomedSlotSize float64 `yaml:"min_zoomed_slot_size" json:"min_zoomed_slot_size"`

	ZoomDurationMS int     `yaml:"zoom_duration_ms" json:"zoom_duration_ms"`
	HitCellSize    float64 `yaml:"hit_cell_size" json:"hit_cell_size"`

	// OverflowLabel is a printf format taking the hidden count, e.g. "+%d more".
	OverflowLabel string `yaml:"overflow_label" json:"overflow_label"`
}

// ViewportConfig is the default render surface.
type ViewportConfig struct {
	Width            float64 `yaml:"width" json:"width"`
	Height           float64 `yaml:"height" json:"height"`
	DevicePixelRatio float64 `yaml:"device_pixel_ratio" json:"device_pixel_ratio"`
}

// EventConfig is a statically configured event. Either Day+Start+End or
// Cron+Duration must be set; a cron event expands into one event per
// matching weekday and start time.
type EventConfig struct {
	ID         string `yaml:"id,omitempty" json:"id,omitempty"`
	Title      string `yaml:"title" json:"title"`
	Color      string `yaml:"color,omitempty" json:"color,omitempty"`
	Priority   int    `yaml:"priority,omitempty" json:"priority,omitempty"`
	Background bool   `yaml:"background,omitempty" json:"background,omitempty"`

	Day   string `yaml:"day,omitempty" json:"day,omitempty"`
	Start string `yaml:"start,omitempty" json:"start,omitempty"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`

	Cron     string `yaml:"cron,omitempty" json:"cron,omitempty"`
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone ICS instants are projected into.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for reloading
	// event sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Viewport ViewportConfig `yaml:"viewport" json:"viewport"`

	Events []EventConfig `yaml:"events" json:"events"`
	ICS    []ICSConfig   `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	lo := layout.DefaultOptions()
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		WeekStart:   "monday",
		RefreshCron: "*/15 * * * *",
		Schedule: ScheduleConfig{
			StartHour:         lo.Grid.StartHour,
			EndHour:           lo.Grid.EndHour,
			SlotMinutes:       lo.Grid.Interval,
			Orientation:       lo.Orientation.String(),
			HeaderSize:        lo.HeaderSize,
			AxisSize:          lo.AxisSize,
			NavButtonSize:     lo.NavButtonSize,
			LaneGap:           lo.LaneGap,
			MinZoomedSlotSize: lo.MinZoomedSlotSize,
			ZoomDurationMS:    320,
			HitCellSize:       50,
			OverflowLabel:     "+%d more",
		},
		Viewport: ViewportConfig{
			Width:            1280,
			Height:           800,
			DevicePixelRatio: 1,
		},
		Events:    []EventConfig{},
		ICS:       []ICSConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly. Invalid values are left for
// Validate to report.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart == "" {
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}

	s, d := &c.Schedule, def.Schedule
	if s.StartHour == 0 && s.EndHour == 0 {
		s.StartHour, s.EndHour = d.StartHour, d.EndHour
	}
	if s.SlotMinutes == 0 {
		s.SlotMinutes = d.SlotMinutes
	}
	if s.Orientation == "" {
		s.Orientation = d.Orientation
	}
	if s.HeaderSize == 0 {
		s.HeaderSize = d.HeaderSize
	}
	if s.AxisSize == 0 {
		s.AxisSize = d.AxisSize
	}
	if s.NavButtonSize == 0 {
		s.NavButtonSize = d.NavButtonSize
	}
	if s.ZoomDurationMS == 0 {
		s.ZoomDurationMS = d.ZoomDurationMS
	}
	if s.HitCellSize == 0 {
		s.HitCellSize = d.HitCellSize
	}
	if s.OverflowLabel == "" {
		s.OverflowLabel = d.OverflowLabel
	}

	if c.Viewport.Width == 0 && c.Viewport.Height == 0 {
		c.Viewport.Width, c.Viewport.Height = def.Viewport.Width, def.Viewport.Height
	}
	if c.Viewport.DevicePixelRatio == 0 {
		c.Viewport.DevicePixelRatio = 1
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate reports every malformed field as a *model.ValidationError.
func (c *Config) Validate() error {
	var errs error
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		errs = model.Violation(errs, "week_start", "must be monday or sunday, got %q", c.WeekStart)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = model.Violation(errs, "timezone", "%v", err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = model.Violation(errs, "refresh", "%v", err)
	}
	if _, err := c.LayoutOptions(); err != nil {
		errs = nest(errs, "schedule", err)
	}
	if _, err := c.VisibleDays(); err != nil {
		errs = model.Violation(errs, "schedule.visible_days", "%v", err)
	}
	if c.Schedule.ZoomDurationMS < 0 {
		errs = model.Violation(errs, "schedule.zoom_duration_ms", "must not be negative")
	}
	if err := layout.ValidateViewport(c.Viewport.Width, c.Viewport.Height, c.Viewport.DevicePixelRatio); err != nil {
		errs = nest(errs, "viewport", err)
	}
	if c.Viewport.DevicePixelRatio < 0 {
		errs = model.Violation(errs, "viewport.device_pixel_ratio", "must not be negative")
	}

	for i, ev := range c.Events {
		prefix := fmt.Sprintf("events[%d]", i)
		if ev.Cron != "" {
			if _, err := cron.ParseStandard(ev.Cron); err != nil {
				errs = model.Violation(errs, prefix+".cron", "%v", err)
			}
			if ev.Day != "" || ev.Start != "" || ev.End != "" {
				errs = model.Violation(errs, prefix, "cron events must not set day, start or end")
			}
			if d, err := time.ParseDuration(ev.Duration); err != nil || d <= 0 {
				errs = model.Violation(errs, prefix+".duration", "must be a positive duration, got %q", ev.Duration)
			}
			continue
		}
		if _, err := model.ParseWeekday(ev.Day); err != nil {
			errs = model.Violation(errs, prefix+".day", "%v", err)
		}
		if _, err := model.ParseTimeOfDay(ev.Start); err != nil {
			errs = model.Violation(errs, prefix+".start", "%v", err)
		}
		if _, err := model.ParseTimeOfDay(ev.End); err != nil {
			errs = model.Violation(errs, prefix+".end", "%v", err)
		}
	}
	for i, src := range c.ICS {
		if (src.URL == "") == (src.Path == "") {
			errs = model.Violation(errs, fmt.Sprintf("ics[%d]", i), "exactly one of url or path must be set")
		}
	}
	return model.AsValidationError(errs)
}

// nest re-roots the field errors of err under prefix.
func nest(errs error, prefix string, err error) error {
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		return model.Violation(errs, prefix, "%v", err)
	}
	for _, f := range verr.Fields {
		errs = model.Violation(errs, prefix+"."+f.Field, "%s", f.Reason)
	}
	return errs
}

// LayoutOptions maps the schedule section onto engine options.
func (c *Config) LayoutOptions() (layout.Options, error) {
	s := c.Schedule
	o, err := layout.ParseOrientation(s.Orientation)
	if err != nil {
		return layout.Options{}, err
	}
	opts := layout.Options{
		Orientation:       o,
		Grid:              model.SlotGrid{StartHour: s.StartHour, EndHour: s.EndHour, Interval: s.SlotMinutes},
		HeaderSize:        s.HeaderSize,
		AxisSize:          s.AxisSize,
		NavButtonSize:     s.NavButtonSize,
		LaneGap:           s.LaneGap,
		MinZoomedSlotSize: s.MinZoomedSlotSize,
	}
	if s.OverflowLabel != "" {
		format := s.OverflowLabel
		opts.OverflowLabel = func(n int) string { return fmt.Sprintf(format, n) }
	}
	if err := opts.Validate(); err != nil {
		return layout.Options{}, err
	}
	return opts, nil
}

// VisibleDays returns the configured normal-view order.
func (c *Config) VisibleDays() ([]model.Weekday, error) {
	if len(c.Schedule.VisibleDays) == 0 {
		return model.WeekOrder(c.WeekStart), nil
	}
	out := make([]model.Weekday, 0, len(c.Schedule.VisibleDays))
	seen := make(map[model.Weekday]bool)
	for _, s := range c.Schedule.VisibleDays {
		d, err := model.ParseWeekday(s)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			return nil, fmt.Errorf("duplicate day %q", s)
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// ZoomDuration is the configured transition length.
func (c *Config) ZoomDuration() time.Duration {
	return time.Duration(c.Schedule.ZoomDurationMS) * time.Millisecond
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, normalizes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

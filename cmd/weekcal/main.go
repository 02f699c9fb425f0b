package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"weekcal/internal/config"
	"weekcal/internal/interact"
	"weekcal/internal/layout"
	appLog "weekcal/internal/log"
	"weekcal/internal/preview"
	"weekcal/internal/source"
	"weekcal/internal/web"
)

// frameInterval drives hover and zoom animations server side.
const frameInterval = 16 * time.Millisecond

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	out        string
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()
	appLog.Info("weekcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"orientation", conf.Schedule.Orientation,
		"events", len(conf.Events),
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := source.NewFetcher(filepath.Join(filepath.Dir(flags.configPath), "ics-cache"), nil)

	if flags.once {
		if err := renderOnce(ctx, conf, fetcher, flags.out); err != nil {
			appLog.Error("render failed", err, "out", flags.out)
			os.Exit(1)
		}
		return
	}

	var current atomic.Pointer[config.Config]
	current.Store(conf)

	var srv *web.Server
	notify := func(n interact.Notice) {
		appLog.Debug("notice", "kind", n.Kind, "day", n.Day.String(), "anchor", n.AnchorID)
		srv.RecordNotice(n)
	}
	session, err := newSession(conf, notify)
	if err != nil {
		appLog.Error("invalid schedule configuration", err)
		os.Exit(1)
	}
	srv = web.NewServer(session, conf.BasicAuth)

	refresh := func() {
		c := current.Load()
		events, err := source.Collect(ctx, c, fetcher, time.Now())
		if err != nil {
			appLog.Error("event sources reported errors", err)
		}
		srv.Do(func(s *interact.Session) {
			if err := s.SetEvents(events); err != nil {
				appLog.Error("rejected event set", err, "events", len(events))
			}
		})
	}
	refresh()

	sched := cron.New()
	entry, err := sched.AddFunc(conf.RefreshCron, refresh)
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		err := config.Watch(ctx, flags.configPath, config.DefaultDebounce, func(next *config.Config) {
			if flags.listen != "" {
				next.Listen = flags.listen
			}
			s, err := newSession(next, notify)
			if err != nil {
				appLog.Error("reloaded config rejected", err)
				return
			}
			if next.RefreshCron != current.Load().RefreshCron {
				id, err := sched.AddFunc(next.RefreshCron, refresh)
				if err != nil {
					appLog.Error("invalid refresh schedule", err, "refresh", next.RefreshCron)
					return
				}
				sched.Remove(entry)
				entry = id
			}
			current.Store(next)
			srv.Swap(s)
			refresh()
			appLog.Info("session rebuilt from config", "events", len(next.Events), "ics_count", len(next.ICS))
		})
		if err != nil {
			appLog.Error("config watcher stopped", err, "config_path", flags.configPath)
		}
	}()

	go func() {
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				srv.Do(func(s *interact.Session) { s.Tick(now) })
			}
		}
	}()

	if err := srv.Serve(ctx, conf.Listen); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("weekcal exiting")
}

func newSession(conf *config.Config, handler interact.Handler) (*interact.Session, error) {
	opts, err := conf.LayoutOptions()
	if err != nil {
		return nil, err
	}
	engine, err := layout.New(opts)
	if err != nil {
		return nil, err
	}
	days, err := conf.VisibleDays()
	if err != nil {
		return nil, err
	}
	return interact.New(engine, interact.Config{
		Width:            conf.Viewport.Width,
		Height:           conf.Viewport.Height,
		DevicePixelRatio: conf.Viewport.DevicePixelRatio,
		VisibleDays:      days,
		HitCellSize:      conf.Schedule.HitCellSize,
		ZoomDuration:     conf.ZoomDuration(),
		Handler:          handler,
	})
}

// renderOnce loads every source, lays out the week and writes a PNG.
func renderOnce(ctx context.Context, conf *config.Config, fetcher *source.Fetcher, out string) error {
	session, err := newSession(conf, nil)
	if err != nil {
		return err
	}
	events, err := source.Collect(ctx, conf, fetcher, time.Now())
	if err != nil {
		appLog.Error("event sources reported errors", err)
	}
	if err := session.SetEvents(events); err != nil {
		return err
	}

	img := preview.Render(session.Layout(), nil, preview.DefaultOptions())
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := preview.EncodePNG(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("preview written", "out", out, "events", len(events))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/weekcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load sources, render one preview PNG and exit")
	flag.StringVar(&cfg.out, "out", "preview.png", "Output path for -once")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

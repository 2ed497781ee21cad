package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/decision"
	"github.com/darkreach/darkreach/internal/eventbus"
	"github.com/darkreach/darkreach/internal/project"
	"github.com/darkreach/darkreach/internal/store"
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// tickSchedules holds the cron entries derived from one config snapshot; a
// SIGHUP reload that changes any interval stops the old cron and starts a
// fresh one from the new snapshot.
type tickSchedules struct {
	ooda    time.Duration
	reclaim time.Duration
	prune   time.Duration
}

func schedulesFrom(cfg *config.Config) tickSchedules {
	s := tickSchedules{
		ooda:    cfg.OODA.TickInterval.Duration,
		reclaim: cfg.General.ReclaimInterval.Duration,
		prune:   time.Minute,
	}
	if s.ooda <= 0 {
		s.ooda = 30 * time.Second
	}
	if s.reclaim <= 0 {
		s.reclaim = 2 * time.Minute
	}
	return s
}

func startCron(ctx context.Context, s tickSchedules, engine *decision.Engine, coord *coordinator.Coordinator, logger *slog.Logger) *cron.Cron {
	c := cron.New(cron.WithSeconds())
	c.AddFunc(fmt.Sprintf("@every %s", s.ooda), func() {
		if _, err := engine.Tick(ctx); err != nil {
			logger.Error("ooda tick failed", "error", err)
		}
	})
	c.AddFunc(fmt.Sprintf("@every %s", s.reclaim), coord.ReclaimStaleTick)
	c.AddFunc(fmt.Sprintf("@every %s", s.prune), coord.PruneWorkersTick)
	c.Start()
	return c
}

func main() {
	configPath := flag.String("config", "darkreach.toml", "path to config file")
	once := flag.Bool("once", false, "run a single OODA tick then exit")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	importPath := flag.String("import-project", "", "import a project TOML file, activate it, and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	logger.Info("darkreach coordinator starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfgMgr := config.NewManager(cfg)

	logger = configureLogger(cfg.General.LogLevel, *dev)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.General.StateDB)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.General.StateDB, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	events := eventbus.New(256)
	coord := coordinator.New(st, cfgMgr, logger.With("component", "coordinator"))
	projects := project.New(coord, cfgMgr, logger.With("component", "project"))
	projects.SetEventBus(events)
	engine := decision.New(coord, projects, cfgMgr, logger.With("component", "ooda"))

	if *importPath != "" {
		pf, err := config.LoadProject(*importPath)
		if err != nil {
			logger.Error("project import failed", "path", *importPath, "error", err)
			os.Exit(1)
		}
		id, err := projects.Import(pf)
		if err != nil {
			logger.Error("project import failed", "path", *importPath, "error", err)
			os.Exit(1)
		}
		if err := projects.Activate(id); err != nil {
			logger.Error("project activation failed", "project_id", id, "error", err)
			os.Exit(1)
		}
		logger.Info("project imported", "project_id", id, "name", pf.Project.Name, "form", pf.Project.Form)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		logger.Info("running single tick (--once mode)")
		res, err := engine.Tick(ctx)
		if err != nil {
			logger.Error("tick failed", "error", err)
			os.Exit(1)
		}
		logger.Info("single tick complete", "tick_id", res.TickID, "decisions", len(res.Decisions))
		return
	}

	// Drain bus events into the structured log so discoveries and budget
	// alerts show up in the coordinator's own output, not just worker logs.
	busCh, unsubscribe := events.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-busCh:
				logger.Info("event", "kind", ev.Kind, "data", ev.Data)
			}
		}
	}()

	schedules := schedulesFrom(cfg)
	ticks := startCron(ctx, schedules, engine, coord, logger)

	logger.Info("darkreach coordinator running",
		"state_db", cfg.General.StateDB,
		"ooda_interval", schedules.ooda.String(),
		"reclaim_interval", schedules.reclaim.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			if err := cfgMgr.Reload(*configPath); err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			newCfg := cfgMgr.Get()
			logger = configureLogger(newCfg.General.LogLevel, *dev)
			slog.SetDefault(logger)
			if newSchedules := schedulesFrom(newCfg); newSchedules != schedules {
				<-ticks.Stop().Done()
				schedules = newSchedules
				ticks = startCron(ctx, schedules, engine, coord, logger)
				logger.Info("tick schedules changed",
					"ooda_interval", schedules.ooda.String(),
					"reclaim_interval", schedules.reclaim.String(),
				)
			}
			logger.Info("config reloaded")
		case syscall.SIGINT, syscall.SIGTERM:
			shutdownStart := time.Now()
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			<-ticks.Stop().Done()
			logger.Info("darkreach coordinator stopped", "shutdown_duration", time.Since(shutdownStart).String())
			return
		}
	}
}

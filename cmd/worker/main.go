package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/eventbus"
	"github.com/darkreach/darkreach/internal/store"
	"github.com/darkreach/darkreach/internal/workerrt"
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

func main() {
	configPath := flag.String("config", "darkreach.toml", "path to config file")
	jobID := flag.Int64("job", 0, "search job id to claim blocks from")
	workerID := flag.String("worker-id", "", "worker identity (defaults to hostname)")
	checkpointDir := flag.String("checkpoint-dir", ".", "directory for per-block checkpoint files")
	cores := flag.Int("cores", runtime.NumCPU(), "CPU-bound pool size for candidate testing")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *jobID == 0 {
		logger.Error("missing required -job flag")
		os.Exit(1)
	}

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

	job, err := st.GetJob(*jobID)
	if err != nil {
		logger.Error("failed to read job", "job_id", *jobID, "error", err)
		os.Exit(1)
	}

	coord := coordinator.New(st, cfgMgr, logger.With("component", "coordinator"))
	events := eventbus.New(64)
	rt := workerrt.New(coord, events, workerrt.Options{
		WorkerID:       *workerID,
		CheckpointDir:  *checkpointDir,
		MRRounds:       cfg.General.DefaultMRRounds,
		SieveLimit:     cfg.General.DefaultSieveLimit,
		HeartbeatEvery: cfg.General.HeartbeatInterval.Duration,
		Workers:        *cores,
	}, logger.With("component", "worker"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, requesting stop", "signal", sig)
		rt.RequestStop()
	}()

	logger.Info("darkreach worker starting",
		"worker_id", rt.WorkerID(),
		"job_id", job.ID,
		"search_type", job.SearchType,
		"cores", *cores,
	)

	if err := rt.Run(ctx, job.ID, job.SearchType, job.Params); err != nil {
		logger.Error("worker run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("darkreach worker stopped", "worker_id", rt.WorkerID())
}

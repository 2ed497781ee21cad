package decision

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/project"
	"github.com/darkreach/darkreach/internal/store"
)

// Engine runs the coordinator's OBSERVE-ORIENT-DECIDE-ACT-LEARN loop. It
// keeps the previous snapshot, the last LEARN time and the tick count in
// memory, and persists the scoring weights and tick counters via an
// engine_state row at the end of every tick.
type Engine struct {
	coord         *coordinator.Coordinator
	projectEngine *project.Engine
	cfgMgr        config.ConfigManager
	logger        *slog.Logger

	mu        sync.Mutex
	lastSnap  WorldSnapshot
	lastLearn time.Time
	tickCount int64
}

// New constructs a decision Engine bound to coord and the project engine
// whose Tick() OBSERVE invokes each cycle.
func New(coord *coordinator.Coordinator, projectEngine *project.Engine, cfgMgr config.ConfigManager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{coord: coord, projectEngine: projectEngine, cfgMgr: cfgMgr, logger: logger}
}

// TickResult summarizes one tick for callers that want visibility beyond
// the audit log (tests, CLI -once mode).
type TickResult struct {
	TickID    string
	Snapshot  WorldSnapshot
	Scores    []FormScore
	Drift     DriftReport
	Decisions []Decision
	Learned   int
}

// Tick runs one full OBSERVE -> ORIENT -> DECIDE -> ACT cycle, and LEARN if
// its interval has elapsed. It reads the configuration manager's current
// snapshot at the start; it does not re-read the config file itself.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	cfg := e.cfgMgr.Get()
	tickID := uuid.NewString()

	snap, err := Observe(e.coord, e.projectEngine, 7*24*time.Hour)
	if err != nil {
		return TickResult{}, err
	}

	stalled, err := e.coord.Store().ListStalledJobs(StalledThreshold)
	if err != nil {
		return TickResult{}, err
	}

	e.mu.Lock()
	prev := e.lastSnap
	e.mu.Unlock()
	drift := ComputeDrift(prev, snap, stalled)

	scores := Orient(snap, cfg)
	decisions := Decide(snap, scores, drift, cfg)

	if err := Act(e.coord, e.projectEngine, tickID, decisions, e.logger); err != nil {
		return TickResult{}, err
	}

	learned := 0
	e.mu.Lock()
	learnInterval := time.Duration(cfg.OODA.LearnIntervalSecs) * time.Second
	if learnInterval <= 0 {
		learnInterval = 5 * time.Minute
	}
	runLearn := time.Since(e.lastLearn) >= learnInterval
	if runLearn {
		e.lastLearn = time.Now()
	}
	e.tickCount++
	tickCount := e.tickCount
	e.lastSnap = snap
	e.mu.Unlock()

	if runLearn {
		n, err := Learn(e.coord.Store(), cfg)
		if err != nil {
			e.logger.Error("learn failed", "tick_id", tickID, "error", err)
		} else {
			learned = n
		}
	}

	if err := e.coord.Store().SaveEngineState(store.EngineState{
		ScoringWeights:   cfg.OODA.ScoringWeights,
		CostModelVersion: int(tickCount),
		TickCount:        tickCount,
	}); err != nil {
		e.logger.Error("save engine state failed", "tick_id", tickID, "error", err)
	}

	e.logger.Info("ooda tick complete", "tick_id", tickID, "decisions", len(decisions), "learned", learned)
	return TickResult{TickID: tickID, Snapshot: snap, Scores: scores, Drift: drift, Decisions: decisions, Learned: learned}, nil
}


// Package workerrt implements the worker runtime loop: claim,
// resume from checkpoint, execute the form's engine, heartbeat, report, and
// cooperative stop. It is the sole worker-side implementation of the
// CoordinationClient contract that per-form engines in
// internal/forms consult.
package workerrt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
	"github.com/darkreach/darkreach/internal/checkpoint"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/eventbus"
	"github.com/darkreach/darkreach/internal/forms"
	"github.com/darkreach/darkreach/internal/store"
)

// Runtime drives one worker process's claim -> resume -> execute ->
// heartbeat -> report -> deregister loop.
type Runtime struct {
	coord          *coordinator.Coordinator
	events         *eventbus.Bus
	workerID       string
	checkpointDir  string
	mrRounds       int
	sieveLimit     uint64
	heartbeatEvery time.Duration
	emptyQueueWait time.Duration
	batchSize      int
	workers        int
	logger         *slog.Logger

	stop     atomic.Bool
	progress *forms.Progress

	// Engines publish per-block counts into progress; these accumulate the
	// totals of already-completed blocks so heartbeats report lifetime
	// figures.
	doneTested atomic.Uint64
	doneFound  atomic.Uint64
}

// Options configures a Runtime. WorkerID defaults to the hostname when
// empty.
type Options struct {
	WorkerID       string
	CheckpointDir  string
	MRRounds       int
	SieveLimit     uint64
	HeartbeatEvery time.Duration
	EmptyQueueWait time.Duration
	BatchSize      int
	Workers        int
}

// New constructs a Runtime bound to coord for reporting/claiming and events
// for publishing PrimeFound notifications.
func New(coord *coordinator.Coordinator, events *eventbus.Bus, opts Options, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	workerID := opts.WorkerID
	if workerID == "" {
		if h, err := os.Hostname(); err == nil {
			workerID = h
		} else {
			workerID = "worker-unknown"
		}
	}
	heartbeatEvery := opts.HeartbeatEvery
	if heartbeatEvery <= 0 {
		heartbeatEvery = 12 * time.Second
	}
	emptyQueueWait := opts.EmptyQueueWait
	if emptyQueueWait <= 0 {
		emptyQueueWait = 30 * time.Second
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 4
	}
	mrRounds := opts.MRRounds
	if mrRounds <= 0 {
		mrRounds = 20
	}
	return &Runtime{
		coord:          coord,
		events:         events,
		workerID:       workerID,
		checkpointDir:  opts.CheckpointDir,
		mrRounds:       mrRounds,
		sieveLimit:     opts.SieveLimit,
		heartbeatEvery: heartbeatEvery,
		emptyQueueWait: emptyQueueWait,
		batchSize:      batchSize,
		workers:        opts.Workers,
		logger:         logger,
		progress:       &forms.Progress{},
	}
}

// WorkerID returns the identity this runtime heartbeats and claims under.
func (r *Runtime) WorkerID() string {
	return r.workerID
}

// RequestStop asserts the cooperative stop flag; the current block finishes
// its in-flight checkpoint and the run loop exits cleanly.
func (r *Runtime) RequestStop() {
	r.stop.Store(true)
}

// IsStopRequested implements forms.CoordinationClient.
func (r *Runtime) IsStopRequested() bool {
	return r.stop.Load()
}

// ReportPrime implements forms.CoordinationClient by forwarding a
// confirmed discovery to the coordinator.
func (r *Runtime) ReportPrime(ctx context.Context, rep forms.PrimeReport) error {
	_, err := r.coord.Store().InsertPrime(store.PrimeRecord{
		Form:         rep.Form,
		Expression:   rep.Expression,
		Digits:       rep.Digits,
		ProofMethod:  rep.ProofMethod,
		SearchParams: rep.SearchParams,
		Verified:     rep.Verified,
	})
	if err != nil {
		return fmt.Errorf("workerrt: report prime: %w", err)
	}
	r.logger.Info("prime found", "form", rep.Form, "expression", rep.Expression, "digits", rep.Digits, "proof_method", rep.ProofMethod)
	return nil
}

// Run executes the worker's main loop against jobID until ctx is cancelled
// or stop is requested. searchType selects the
// engine from forms.Registry.
func (r *Runtime) Run(ctx context.Context, jobID int64, searchType string, extraParams map[string]any) error {
	engine, ok := forms.Registry()[searchType]
	if !ok {
		return fmt.Errorf("workerrt: unknown search type %q", searchType)
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go r.heartbeatLoop(heartbeatCtx)

	var queue []store.Block
	for {
		if ctx.Err() != nil || r.stop.Load() {
			break
		}
		if len(queue) == 0 {
			blocks, err := r.coord.ClaimBlocks(jobID, r.workerID, r.batchSize)
			if err != nil && err != coordinator.ErrNoBlockAvailable {
				r.logger.Error("claim blocks failed", "error", err)
			}
			if len(blocks) == 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(r.emptyQueueWait):
					continue
				}
			}
			queue = blocks
		}

		block := queue[0]
		queue = queue[1:]
		r.progress.SetBlockID(block.ID)
		r.progress.SetCurrent(fmt.Sprintf("%s [%d,%d)", searchType, block.BlockStart, block.BlockEnd))

		if err := r.runBlock(ctx, engine, searchType, block, extraParams); err != nil {
			r.logger.Error("block failed", "block_id", block.ID, "error", err)
			if err := r.coord.FailBlock(block.ID); err != nil {
				r.logger.Error("fail block failed", "block_id", block.ID, "error", err)
			}
		}
	}

	r.drainAndDeregister()
	return nil
}

func (r *Runtime) runBlock(ctx context.Context, engine forms.Engine, searchType string, block store.Block, extraParams map[string]any) error {
	effectiveStart := block.BlockStart
	if lt, ok := block.BlockCheckpoint["last_tested"]; ok {
		if f, ok := lt.(float64); ok && uint64(f)+1 > block.BlockStart && uint64(f)+1 <= block.BlockEnd {
			effectiveStart = uint64(f) + 1
		}
	}

	path := ""
	if r.checkpointDir != "" {
		path = filepath.Join(r.checkpointDir, fmt.Sprintf("block-%d.json", block.ID))
		_ = checkpoint.Save(path, checkpoint.Value{Form: searchType, LastTested: effectiveStart - 1})
	}

	sieveLimit := bigmath.ResolveSieveLimit(r.sieveLimit, 0, block.BlockEnd-effectiveStart)

	start := time.Now()
	res, err := engine.Search(ctx, forms.SearchParams{
		RangeStart:     effectiveStart,
		RangeEnd:       block.BlockEnd,
		Progress:       r.progress,
		CheckpointPath: path,
		ExtraParams:    extraParams,
		MRRounds:       r.mrRounds,
		SieveLimit:     sieveLimit,
		Coord:          r,
		Events:         r.events,
		Stop:           &r.stop,
		Workers:        r.workers,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return err
	}

	r.doneTested.Add(res.Tested)
	r.doneFound.Add(res.Found)
	r.progress.Tested.Store(0)
	r.progress.Found.Store(0)

	var obs *store.CostObservation
	if res.Tested > 0 {
		obs = &store.CostObservation{Form: searchType, Digits: estimateDigits(extraParams, block.BlockEnd), Secs: elapsed}
	}
	return r.coord.CompleteBlock(block.ID, int64(res.Tested), int64(res.Found), obs)
}

// estimateDigits gives LEARN a rough digit scale for the cost observation
// without reconstructing every tested candidate; callers that care about
// precise per-prime cost curves rely on the prime_records.digits of actual
// discoveries, not this estimate.
func estimateDigits(extraParams map[string]any, n uint64) int64 {
	digits := int64(1)
	for x := n; x > 0; x /= 10 {
		digits++
	}
	return digits
}

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.heartbeatOnce()
		}
	}
}

func (r *Runtime) heartbeatOnce() {
	current, blockID := r.progress.Snapshot()
	w := store.Worker{
		WorkerID: r.workerID,
		Hostname: r.workerID,
		Cores:    r.workers,
		Tested:   int64(r.doneTested.Load() + r.progress.Tested.Load()),
		Found:    int64(r.doneFound.Load() + r.progress.Found.Load()),
		Current:  current,
	}
	if blockID != nil {
		w.Metrics = map[string]any{"current_block_id": *blockID}
	}
	cmd, err := r.coord.HeartbeatWorker(w)
	if err != nil {
		r.logger.Error("heartbeat failed", "error", err)
		return
	}
	if cmd == "stop" {
		r.logger.Info("received stop command from coordinator")
		r.RequestStop()
	}

	// Push the engine's on-disk checkpoint into the block row so another
	// worker resuming this block after a stale reclaim continues from
	// last_tested+1 instead of the block start.
	if blockID != nil && r.checkpointDir != "" {
		path := filepath.Join(r.checkpointDir, fmt.Sprintf("block-%d.json", *blockID))
		if v, ok := checkpoint.Load(path); ok {
			if err := r.coord.HeartbeatCheckpoint(*blockID, v.LastTested); err != nil {
				r.logger.Error("heartbeat checkpoint failed", "block_id", *blockID, "error", err)
			}
		}
	}
}

func (r *Runtime) drainAndDeregister() {
	r.heartbeatOnce()
	if err := r.coord.Store().DeregisterWorker(r.workerID); err != nil {
		r.logger.Error("deregister failed", "error", err)
	}
}

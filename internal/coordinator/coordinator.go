// Package coordinator implements the work-block coordination fabric: job
// creation, atomic claim/batch-claim, completion, stale-reclaim, and job
// summaries, all backed by the durable store. It is the boundary
// untrusted workers talk to — workers only ever reach the claim/heartbeat/
// complete surface documented here, never store tables directly.
package coordinator

import (
	"log/slog"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/store"
)

// Coordinator wraps the store with the policy layered on top of raw
// persistence: config-driven stale thresholds, quorum-tier lookup, and the
// stale-reclaim and worker-prune sweeps.
type Coordinator struct {
	store  *store.Store
	cfgMgr config.ConfigManager
	logger *slog.Logger
}

// New constructs a Coordinator over an already-open store.
func New(st *store.Store, cfgMgr config.ConfigManager, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: st, cfgMgr: cfgMgr, logger: logger}
}

// Store exposes the underlying store for callers (project/decision engines)
// that need broader read access than the claim surface offers.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// QuorumFor resolves the quorum_required value for a new job's blocks from
// the configured trust-tier table, defaulting to "unverified".
func (c *Coordinator) QuorumFor(tier string) int {
	cfg := c.cfgMgr.Get()
	if tier == "" {
		tier = "unverified"
	}
	if q, ok := cfg.Quorum[tier]; ok {
		return q
	}
	return 3
}

// CreateJob creates a search job and its eager block partition.
func (c *Coordinator) CreateJob(searchType string, params map[string]any, rangeStart, rangeEnd, blockSize uint64, trustTier string) (int64, error) {
	jobID, err := c.store.CreateJob(searchType, params, rangeStart, rangeEnd, blockSize, c.QuorumFor(trustTier))
	if err != nil {
		return 0, err
	}
	c.logger.Info("job created", "job_id", jobID, "search_type", searchType, "range_start", rangeStart, "range_end", rangeEnd, "block_size", blockSize)
	return jobID, nil
}

// ClaimBlock claims a single block for workerID.
func (c *Coordinator) ClaimBlock(jobID int64, workerID string) (*store.Block, error) {
	b, err := c.store.ClaimBlock(jobID, workerID)
	if err != nil {
		return nil, err
	}
	c.logger.Info("block claimed", "block_id", b.ID, "job_id", jobID, "worker_id", workerID, "block_start", b.BlockStart, "block_end", b.BlockEnd)
	return b, nil
}

// ClaimBlocks batch-claims up to n blocks for workerID.
func (c *Coordinator) ClaimBlocks(jobID int64, workerID string, n int) ([]store.Block, error) {
	blocks, err := c.store.ClaimBlocks(jobID, workerID, n)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		c.logger.Info("blocks claimed", "job_id", jobID, "worker_id", workerID, "count", len(blocks))
	}
	return blocks, nil
}

// CompleteBlock marks a block completed and, when the caller reports a
// positive wall-clock duration, records one cost observation so the OODA
// LEARN phase has data to fit against.
func (c *Coordinator) CompleteBlock(blockID int64, tested, found int64, obs *store.CostObservation) error {
	if err := c.store.CompleteBlock(blockID, tested, found); err != nil {
		return err
	}
	if obs != nil && obs.Secs > 0 {
		if err := c.store.InsertCostObservation(*obs); err != nil {
			c.logger.Warn("failed to record cost observation", "block_id", blockID, "error", err)
		}
	}
	return nil
}

// FailBlock marks a block failed.
func (c *Coordinator) FailBlock(blockID int64) error {
	c.logger.Warn("block failed", "block_id", blockID)
	return c.store.FailBlock(blockID)
}

// HeartbeatCheckpoint persists in-progress resume state for a claimed block.
func (c *Coordinator) HeartbeatCheckpoint(blockID int64, lastTested uint64) error {
	return c.store.HeartbeatCheckpoint(blockID, lastTested)
}

// JobSummary returns aggregate block state for jobID.
func (c *Coordinator) JobSummary(jobID int64) (store.JobSummary, error) {
	return c.store.JobSummaryFor(jobID)
}

// HeartbeatWorker upserts a worker's row and returns any queued pending
// command.
func (c *Coordinator) HeartbeatWorker(w store.Worker) (string, error) {
	return c.store.HeartbeatWorker(w)
}

// ReclaimStaleTick runs one stale-block sweep: every block claimed longer
// ago than the configured threshold reverts to available with its
// block_checkpoint intact. Scheduled periodically by the coordinator
// process.
func (c *Coordinator) ReclaimStaleTick() {
	cfg := c.cfgMgr.Get()
	n, err := c.store.ReclaimStale(cfg.General.StaleClaimSeconds)
	if err != nil {
		c.logger.Error("reclaim stale failed", "error", err)
		return
	}
	if n > 0 {
		c.logger.Info("reclaimed stale blocks", "count", n)
	}
}

// PruneWorkersTick removes workers whose last heartbeat is older than the
// configured staleness window.
func (c *Coordinator) PruneWorkersTick() {
	cfg := c.cfgMgr.Get()
	threshold := int(cfg.General.HeartbeatStaleAfter.Duration.Seconds())
	if threshold <= 0 {
		threshold = 90
	}
	n, err := c.store.PruneStaleWorkers(threshold)
	if err != nil {
		c.logger.Error("prune stale workers failed", "error", err)
		return
	}
	if n > 0 {
		c.logger.Info("pruned stale workers", "count", n)
	}
}

// ErrNoBlockAvailable re-exports store.ErrNoBlockAvailable so callers only
// need to import this package.
var ErrNoBlockAvailable = store.ErrNoBlockAvailable

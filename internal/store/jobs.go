package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoBlockAvailable is returned by ClaimBlock when no block is ready to
// claim; callers branch on it to sleep and retry.
var ErrNoBlockAvailable = errors.New("store: no block available")

// Job mirrors the search_jobs row.
type Job struct {
	ID          int64
	SearchType  string
	Params      map[string]any
	Status      string
	CreatedAt   time.Time
	StartedAt   *time.Time
	StoppedAt   *time.Time
	RangeStart  uint64
	RangeEnd    uint64
	BlockSize   uint64
	TotalTested int64
	TotalFound  int64
	Error       string
}

// Block mirrors the work_blocks row.
type Block struct {
	ID              int64
	SearchJobID     int64
	BlockStart      uint64
	BlockEnd        uint64
	Status          string
	ClaimedBy       string
	ClaimedAt       *time.Time
	CompletedAt     *time.Time
	Tested          int64
	Found           int64
	BlockCheckpoint map[string]any
	QuorumRequired  int
}

// JobSummary aggregates block terminal-state counts for phase completion
// checks.
type JobSummary struct {
	Available   int
	Claimed     int
	Completed   int
	Failed      int
	TotalTested int64
	TotalFound  int64
}

// CreateJob inserts a search_jobs row and eagerly partitions
// [rangeStart, rangeEnd) into work_blocks of blockSize, the last one
// possibly shorter.
func (s *Store) CreateJob(searchType string, params map[string]any, rangeStart, rangeEnd, blockSize uint64, quorum int) (int64, error) {
	if rangeEnd <= rangeStart {
		return 0, fmt.Errorf("store: create job: range_end must exceed range_start")
	}
	if blockSize == 0 {
		return 0, fmt.Errorf("store: create job: block_size must be positive")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("store: create job: marshal params: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: create job: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO search_jobs (search_type, params, status, started_at, range_start, range_end, block_size)
		 VALUES (?, ?, 'running', datetime('now'), ?, ?, ?)`,
		searchType, string(paramsJSON), int64(rangeStart), int64(rangeEnd), int64(blockSize),
	)
	if err != nil {
		return 0, fmt.Errorf("store: create job: insert: %w", err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create job: last insert id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO work_blocks (search_job_id, block_start, block_end, status, quorum_required) VALUES (?, ?, ?, 'available', ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("store: create job: prepare block insert: %w", err)
	}
	defer stmt.Close()

	for start := rangeStart; start < rangeEnd; start += blockSize {
		end := start + blockSize
		if end > rangeEnd {
			end = rangeEnd
		}
		if _, err := stmt.Exec(jobID, int64(start), int64(end), quorum); err != nil {
			return 0, fmt.Errorf("store: create job: insert block: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: create job: commit: %w", err)
	}
	return jobID, nil
}

// ClaimBlock claims one available block for jobID on behalf of workerID via
// ClaimBlocks with n=1. The UPDATE there re-checks status='available' for
// each selected row inside the claiming transaction and skips rows it did
// not change, so no block is handed to two claimers.
func (s *Store) ClaimBlock(jobID int64, workerID string) (*Block, error) {
	blocks, err := s.ClaimBlocks(jobID, workerID, 1)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNoBlockAvailable
	}
	return &blocks[0], nil
}

// ClaimBlocks claims up to n available blocks for jobID in one round-trip,
// so workers can pre-queue work and hide round-trip latency.
func (s *Store) ClaimBlocks(jobID int64, workerID string, n int) ([]Block, error) {
	if n <= 0 {
		return nil, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: claim blocks: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id FROM work_blocks WHERE search_job_id = ? AND status = 'available' ORDER BY block_start ASC LIMIT ?`,
		jobID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("store: claim blocks: select candidates: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: claim blocks: scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: claim blocks: %w", err)
	}

	var claimed []Block
	for _, id := range ids {
		res, err := tx.Exec(
			`UPDATE work_blocks SET status = 'claimed', claimed_by = ?, claimed_at = datetime('now')
			 WHERE id = ? AND status = 'available'`,
			workerID, id,
		)
		if err != nil {
			return nil, fmt.Errorf("store: claim blocks: update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("store: claim blocks: rows affected: %w", err)
		}
		if n == 0 {
			// Raced by a concurrent claimer between the select and update; skip it.
			continue
		}
		b, err := scanBlockTx(tx, id)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, *b)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: claim blocks: commit: %w", err)
	}
	return claimed, nil
}

func scanBlockTx(tx *sql.Tx, id int64) (*Block, error) {
	row := tx.QueryRow(
		`SELECT id, search_job_id, block_start, block_end, status, claimed_by, claimed_at, completed_at,
		        tested, found, block_checkpoint, quorum_required
		 FROM work_blocks WHERE id = ?`, id,
	)
	return scanBlockRow(row)
}

func scanBlockRow(row *sql.Row) (*Block, error) {
	var b Block
	var blockStart, blockEnd int64
	var claimedAt, completedAt sql.NullTime
	var checkpoint string
	if err := row.Scan(&b.ID, &b.SearchJobID, &blockStart, &blockEnd, &b.Status, &b.ClaimedBy,
		&claimedAt, &completedAt, &b.Tested, &b.Found, &checkpoint, &b.QuorumRequired); err != nil {
		return nil, fmt.Errorf("store: scan block: %w", err)
	}
	b.BlockStart = uint64(blockStart)
	b.BlockEnd = uint64(blockEnd)
	if claimedAt.Valid {
		b.ClaimedAt = &claimedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	if checkpoint != "" {
		if err := json.Unmarshal([]byte(checkpoint), &b.BlockCheckpoint); err != nil {
			return nil, fmt.Errorf("store: scan block: unmarshal checkpoint: %w", err)
		}
	}
	return &b, nil
}

// CompleteBlock marks a block completed and records its tested/found
// counts. It is idempotent on block id: a second
// call with the same id is a no-op whose caller-visible effect matches a
// single call, since the UPDATE only matches rows
// not yet in status='completed'.
func (s *Store) CompleteBlock(id int64, tested, found int64) error {
	res, err := s.db.Exec(
		`UPDATE work_blocks SET status = 'completed', tested = ?, found = ?, completed_at = datetime('now')
		 WHERE id = ? AND status != 'completed'`,
		tested, found, id,
	)
	if err != nil {
		return fmt.Errorf("store: complete block %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // already completed; duplicate completion is a no-op
	}
	_, err = s.db.Exec(
		`UPDATE search_jobs SET total_tested = total_tested + ?, total_found = total_found + ? WHERE id = (
			SELECT search_job_id FROM work_blocks WHERE id = ?
		)`,
		tested, found, id,
	)
	if err != nil {
		return fmt.Errorf("store: complete block %d: update job totals: %w", id, err)
	}
	return nil
}

// FailBlock marks a block failed; failed blocks are reclaimable by
// ReclaimStale.
func (s *Store) FailBlock(id int64) error {
	_, err := s.db.Exec(`UPDATE work_blocks SET status = 'failed' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: fail block %d: %w", id, err)
	}
	return nil
}

// ReclaimStale reverts any block whose status is claimed and whose
// claimed_at is older than staleSeconds, or whose status is failed, back to
// available, clearing ownership so a different worker's claim can pick it
// up. It returns the number of
// blocks reclaimed.
func (s *Store) ReclaimStale(staleSeconds int) (int, error) {
	res, err := s.db.Exec(
		`UPDATE work_blocks SET status = 'available', claimed_by = ''
		 WHERE status = 'failed'
		    OR (status = 'claimed' AND claimed_at IS NOT NULL
		        AND (strftime('%s','now') - strftime('%s', claimed_at)) > ?)`,
		staleSeconds,
	)
	if err != nil {
		return 0, fmt.Errorf("store: reclaim stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: reclaim stale: rows affected: %w", err)
	}
	return int(n), nil
}

// HeartbeatCheckpoint persists a worker's in-progress checkpoint for a
// claimed block. On a later resume
// after reclaim, the engine starts from max(block_start, last_tested+1).
func (s *Store) HeartbeatCheckpoint(blockID int64, lastTested uint64) error {
	payload, err := json.Marshal(map[string]any{"last_tested": lastTested})
	if err != nil {
		return fmt.Errorf("store: heartbeat checkpoint: marshal: %w", err)
	}
	_, err = s.db.Exec(`UPDATE work_blocks SET block_checkpoint = ? WHERE id = ?`, string(payload), blockID)
	if err != nil {
		return fmt.Errorf("store: heartbeat checkpoint %d: %w", blockID, err)
	}
	return nil
}

// GetJob loads a single search job by id.
func (s *Store) GetJob(id int64) (*Job, error) {
	row := s.db.QueryRow(
		`SELECT id, search_type, params, status, created_at, started_at, stopped_at,
		        range_start, range_end, block_size, total_tested, total_found, error
		 FROM search_jobs WHERE id = ?`, id,
	)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var paramsJSON string
	var rangeStart, rangeEnd, blockSize int64
	var startedAt, stoppedAt sql.NullTime
	if err := row.Scan(&j.ID, &j.SearchType, &paramsJSON, &j.Status, &j.CreatedAt, &startedAt, &stoppedAt,
		&rangeStart, &rangeEnd, &blockSize, &j.TotalTested, &j.TotalFound, &j.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan job: %w", err)
	}
	j.RangeStart = uint64(rangeStart)
	j.RangeEnd = uint64(rangeEnd)
	j.BlockSize = uint64(blockSize)
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if stoppedAt.Valid {
		j.StoppedAt = &stoppedAt.Time
	}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &j.Params); err != nil {
			return nil, fmt.Errorf("store: scan job: unmarshal params: %w", err)
		}
	}
	return &j, nil
}

// SetJobStatus transitions a job's status and, for terminal statuses,
// records stopped_at.
func (s *Store) SetJobStatus(id int64, status string) error {
	var err error
	switch status {
	case "completed", "cancelled", "failed", "paused":
		_, err = s.db.Exec(`UPDATE search_jobs SET status = ?, stopped_at = datetime('now') WHERE id = ?`, status, id)
	default:
		_, err = s.db.Exec(`UPDATE search_jobs SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("store: set job %d status %s: %w", id, status, err)
	}
	return nil
}

// JobSummaryFor returns per-terminal-state block counts and aggregate
// tested/found totals for jobID, consumed by the
// project/phase engine's completion checks.
func (s *Store) JobSummaryFor(jobID int64) (JobSummary, error) {
	var sum JobSummary
	rows, err := s.db.Query(
		`SELECT status, COUNT(*), COALESCE(SUM(tested),0), COALESCE(SUM(found),0)
		 FROM work_blocks WHERE search_job_id = ? GROUP BY status`, jobID,
	)
	if err != nil {
		return sum, fmt.Errorf("store: job summary %d: %w", jobID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		var tested, found int64
		if err := rows.Scan(&status, &count, &tested, &found); err != nil {
			return sum, fmt.Errorf("store: job summary %d: scan: %w", jobID, err)
		}
		switch status {
		case "available":
			sum.Available = count
		case "claimed":
			sum.Claimed = count
		case "completed":
			sum.Completed = count
			sum.TotalTested += tested
			sum.TotalFound += found
		case "failed":
			sum.Failed = count
		}
	}
	return sum, rows.Err()
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// FormYield aggregates tested/found counts and the furthest point searched
// for one form across every job ever created for it, the input to the
// decision engine's yield_rate and opportunity_density score components.
type FormYield struct {
	Form        string
	TotalTested int64
	TotalFound  int64
	MaxRangeEnd uint64
}

// FormYieldStats returns one FormYield row per distinct search_type with at
// least one job.
func (s *Store) FormYieldStats() ([]FormYield, error) {
	rows, err := s.db.Query(
		`SELECT search_type, COALESCE(SUM(total_tested),0), COALESCE(SUM(total_found),0), COALESCE(MAX(range_end),0)
		 FROM search_jobs GROUP BY search_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: form yield stats: %w", err)
	}
	defer rows.Close()
	var out []FormYield
	for rows.Next() {
		var y FormYield
		var rangeEnd int64
		if err := rows.Scan(&y.Form, &y.TotalTested, &y.TotalFound, &rangeEnd); err != nil {
			return nil, fmt.Errorf("store: form yield stats: scan: %w", err)
		}
		y.MaxRangeEnd = uint64(rangeEnd)
		out = append(out, y)
	}
	return out, rows.Err()
}

// StalledJob identifies a running job with zero tested candidates that has
// been running longer than the given threshold.
type StalledJob struct {
	JobID      int64
	SearchType string
	StartedAt  time.Time
}

// ListStalledJobs returns running jobs with zero tested candidates older
// than olderThan.
func (s *Store) ListStalledJobs(olderThan time.Duration) ([]StalledJob, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	rows, err := s.db.Query(
		`SELECT id, search_type, started_at FROM search_jobs
		 WHERE status = 'running' AND total_tested = 0 AND started_at IS NOT NULL AND started_at < ?`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list stalled jobs: %w", err)
	}
	defer rows.Close()
	var out []StalledJob
	for rows.Next() {
		var j StalledJob
		var startedAt sql.NullTime
		if err := rows.Scan(&j.JobID, &j.SearchType, &startedAt); err != nil {
			return nil, fmt.Errorf("store: list stalled jobs: scan: %w", err)
		}
		if startedAt.Valid {
			j.StartedAt = startedAt.Time
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListRunningJobs returns every job currently in status 'running', used by
// OBSERVE to populate active_jobs.
func (s *Store) ListRunningJobs() ([]Job, error) {
	rows, err := s.db.Query(
		`SELECT id, search_type, params, status, created_at, started_at, stopped_at, range_start, range_end,
		        block_size, total_tested, total_found, error
		 FROM search_jobs WHERE status = 'running' ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list running jobs: %w", err)
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		var j Job
		var paramsJSON string
		var rangeStart, rangeEnd, blockSize int64
		var startedAt, stoppedAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.SearchType, &paramsJSON, &j.Status, &j.CreatedAt, &startedAt, &stoppedAt,
			&rangeStart, &rangeEnd, &blockSize, &j.TotalTested, &j.TotalFound, &j.Error); err != nil {
			return nil, fmt.Errorf("store: list running jobs: scan: %w", err)
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
			_ = json.Unmarshal([]byte(paramsJSON), &j.Params)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

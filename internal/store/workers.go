package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Worker mirrors the workers row.
type Worker struct {
	WorkerID       string
	Hostname       string
	Cores          int
	SearchType     string
	SearchParams   map[string]any
	Tested         int64
	Found          int64
	Current        string
	Checkpoint     string
	Metrics        map[string]any
	RegisteredAt   time.Time
	LastHeartbeat  time.Time
	PendingCommand string
}

// HeartbeatWorker upserts the worker row with current progress and returns
// any pending_command set by an operator, which the worker should act on.
func (s *Store) HeartbeatWorker(w Worker) (pendingCommand string, err error) {
	searchParams, err := json.Marshal(w.SearchParams)
	if err != nil {
		return "", fmt.Errorf("store: heartbeat worker %s: marshal search_params: %w", w.WorkerID, err)
	}
	metrics, err := json.Marshal(w.Metrics)
	if err != nil {
		return "", fmt.Errorf("store: heartbeat worker %s: marshal metrics: %w", w.WorkerID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO workers (worker_id, hostname, cores, search_type, search_params, tested, found, current,
		                       checkpoint, metrics, registered_at, last_heartbeat, pending_command)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'), '')
		 ON CONFLICT(worker_id) DO UPDATE SET
		   hostname = excluded.hostname,
		   cores = excluded.cores,
		   search_type = excluded.search_type,
		   search_params = excluded.search_params,
		   tested = excluded.tested,
		   found = excluded.found,
		   current = excluded.current,
		   checkpoint = excluded.checkpoint,
		   metrics = excluded.metrics,
		   last_heartbeat = datetime('now')`,
		w.WorkerID, w.Hostname, w.Cores, w.SearchType, string(searchParams), w.Tested, w.Found, w.Current,
		w.Checkpoint, string(metrics),
	)
	if err != nil {
		return "", fmt.Errorf("store: heartbeat worker %s: %w", w.WorkerID, err)
	}
	row := s.db.QueryRow(`SELECT pending_command FROM workers WHERE worker_id = ?`, w.WorkerID)
	if err := row.Scan(&pendingCommand); err != nil {
		return "", fmt.Errorf("store: heartbeat worker %s: read pending command: %w", w.WorkerID, err)
	}
	// The pending command is a one-shot signal: clear it once delivered.
	if pendingCommand != "" {
		if _, err := s.db.Exec(`UPDATE workers SET pending_command = '' WHERE worker_id = ?`, w.WorkerID); err != nil {
			return pendingCommand, fmt.Errorf("store: heartbeat worker %s: clear pending command: %w", w.WorkerID, err)
		}
	}
	return pendingCommand, nil
}

// SetPendingCommand queues a command (e.g. "stop") for a worker's next
// heartbeat to pick up.
func (s *Store) SetPendingCommand(workerID, command string) error {
	_, err := s.db.Exec(`UPDATE workers SET pending_command = ? WHERE worker_id = ?`, command, workerID)
	if err != nil {
		return fmt.Errorf("store: set pending command for %s: %w", workerID, err)
	}
	return nil
}

// DeregisterWorker removes a worker's row on clean shutdown.
func (s *Store) DeregisterWorker(workerID string) error {
	_, err := s.db.Exec(`DELETE FROM workers WHERE worker_id = ?`, workerID)
	if err != nil {
		return fmt.Errorf("store: deregister worker %s: %w", workerID, err)
	}
	return nil
}

// PruneStaleWorkers deletes worker rows whose last_heartbeat is older than
// staleSeconds.
func (s *Store) PruneStaleWorkers(staleSeconds int) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM workers WHERE (strftime('%s','now') - strftime('%s', last_heartbeat)) > ?`,
		staleSeconds,
	)
	if err != nil {
		return 0, fmt.Errorf("store: prune stale workers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: prune stale workers: rows affected: %w", err)
	}
	return int(n), nil
}

// ListWorkers returns every currently registered worker, used by OBSERVE to
// assemble the fleet snapshot.
func (s *Store) ListWorkers() ([]Worker, error) {
	rows, err := s.db.Query(
		`SELECT worker_id, hostname, cores, search_type, search_params, tested, found, current,
		        checkpoint, metrics, registered_at, last_heartbeat, pending_command FROM workers`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list workers: %w", err)
	}
	defer rows.Close()

	var out []Worker
	for rows.Next() {
		var w Worker
		var searchParams, metrics string
		if err := rows.Scan(&w.WorkerID, &w.Hostname, &w.Cores, &w.SearchType, &searchParams, &w.Tested,
			&w.Found, &w.Current, &w.Checkpoint, &metrics, &w.RegisteredAt, &w.LastHeartbeat, &w.PendingCommand); err != nil {
			return nil, fmt.Errorf("store: list workers: scan: %w", err)
		}
		if searchParams != "" {
			_ = json.Unmarshal([]byte(searchParams), &w.SearchParams)
		}
		if metrics != "" {
			_ = json.Unmarshal([]byte(metrics), &w.Metrics)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PrimeRecord mirrors the prime_records row.
type PrimeRecord struct {
	ID                int64
	Form              string
	Expression        string
	Digits            int64
	FoundAt           time.Time
	ProofMethod       string
	SearchParams      map[string]any
	Verified          bool
	VerificationTier  int
}

// InsertPrime persists a confirmed prime, unique on (form, expression).
// A duplicate report (e.g. two workers racing the
// same surviving candidate) is silently absorbed rather than erroring.
func (s *Store) InsertPrime(r PrimeRecord) (int64, error) {
	params, err := json.Marshal(r.SearchParams)
	if err != nil {
		return 0, fmt.Errorf("store: insert prime: marshal search_params: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO prime_records (form, expression, digits, proof_method, search_params, verified, verification_tier)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(form, expression) DO NOTHING`,
		r.Form, r.Expression, r.Digits, r.ProofMethod, string(params), r.Verified, r.VerificationTier,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert prime %s %s: %w", r.Form, r.Expression, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		row := s.db.QueryRow(`SELECT id FROM prime_records WHERE form = ? AND expression = ?`, r.Form, r.Expression)
		var id int64
		if err := row.Scan(&id); err != nil {
			return 0, fmt.Errorf("store: insert prime %s %s: lookup existing: %w", r.Form, r.Expression, err)
		}
		return id, nil
	}
	return res.LastInsertId()
}

// GetPrime loads a single prime record by id.
func (s *Store) GetPrime(id int64) (*PrimeRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, form, expression, digits, found_at, proof_method, search_params, verified, verification_tier
		 FROM prime_records WHERE id = ?`, id,
	)
	var r PrimeRecord
	var params string
	if err := row.Scan(&r.ID, &r.Form, &r.Expression, &r.Digits, &r.FoundAt, &r.ProofMethod, &params,
		&r.Verified, &r.VerificationTier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get prime %d: %w", id, err)
	}
	if params != "" {
		_ = json.Unmarshal([]byte(params), &r.SearchParams)
	}
	return &r, nil
}

// BestPrimeForForm returns the largest (by digits) prime record for a form,
// used to populate a project's best_prime_id / records.our_best_digits.
func (s *Store) BestPrimeForForm(form string) (*PrimeRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, form, expression, digits, found_at, proof_method, search_params, verified, verification_tier
		 FROM prime_records WHERE form = ? ORDER BY digits DESC LIMIT 1`, form,
	)
	var r PrimeRecord
	var params string
	if err := row.Scan(&r.ID, &r.Form, &r.Expression, &r.Digits, &r.FoundAt, &r.ProofMethod, &params,
		&r.Verified, &r.VerificationTier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: best prime for %s: %w", form, err)
	}
	if params != "" {
		_ = json.Unmarshal([]byte(params), &r.SearchParams)
	}
	return &r, nil
}

// RecentDiscoveries returns prime records found_at within the last window,
// used by OBSERVE for momentum scoring and recent_discoveries.
func (s *Store) RecentDiscoveries(since time.Time) ([]PrimeRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, form, expression, digits, found_at, proof_method, search_params, verified, verification_tier
		 FROM prime_records WHERE found_at >= ? ORDER BY found_at DESC`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent discoveries: %w", err)
	}
	defer rows.Close()
	var out []PrimeRecord
	for rows.Next() {
		var r PrimeRecord
		var params string
		if err := rows.Scan(&r.ID, &r.Form, &r.Expression, &r.Digits, &r.FoundAt, &r.ProofMethod, &params,
			&r.Verified, &r.VerificationTier); err != nil {
			return nil, fmt.Errorf("store: recent discoveries: scan: %w", err)
		}
		if params != "" {
			_ = json.Unmarshal([]byte(params), &r.SearchParams)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetVerification updates a prime record's verified/verification_tier
// columns, the only mutation a prime record undergoes after creation.
func (s *Store) SetVerification(id int64, verified bool, tier int) error {
	_, err := s.db.Exec(`UPDATE prime_records SET verified = ?, verification_tier = ? WHERE id = ?`, verified, tier, id)
	if err != nil {
		return fmt.Errorf("store: set verification %d: %w", id, err)
	}
	return nil
}

// Package store provides SQLite-backed persistence for darkreach's durable
// entities: prime records, workers, search jobs, work blocks, projects,
// phases, world-record rows, decision-audit entries, cost observations, cost
// calibrations, and engine state. The coordinator is the schema
// owner; workers only reach the claim/heartbeat/complete surface.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a pooled SQLite connection.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS prime_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	form TEXT NOT NULL,
	expression TEXT NOT NULL,
	digits INTEGER NOT NULL,
	found_at DATETIME NOT NULL DEFAULT (datetime('now')),
	proof_method TEXT NOT NULL,
	search_params TEXT NOT NULL DEFAULT '{}',
	verified BOOLEAN NOT NULL DEFAULT 0,
	verification_tier INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_prime_records_form_expr ON prime_records(form, expression);

CREATE TABLE IF NOT EXISTS workers (
	worker_id TEXT PRIMARY KEY,
	hostname TEXT NOT NULL DEFAULT '',
	cores INTEGER NOT NULL DEFAULT 0,
	search_type TEXT NOT NULL DEFAULT '',
	search_params TEXT NOT NULL DEFAULT '{}',
	tested INTEGER NOT NULL DEFAULT 0,
	found INTEGER NOT NULL DEFAULT 0,
	current TEXT NOT NULL DEFAULT '',
	checkpoint TEXT NOT NULL DEFAULT '',
	metrics TEXT NOT NULL DEFAULT '{}',
	registered_at DATETIME NOT NULL DEFAULT (datetime('now')),
	last_heartbeat DATETIME NOT NULL DEFAULT (datetime('now')),
	pending_command TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS search_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	search_type TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'running',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at DATETIME,
	stopped_at DATETIME,
	range_start INTEGER NOT NULL,
	range_end INTEGER NOT NULL,
	block_size INTEGER NOT NULL,
	total_tested INTEGER NOT NULL DEFAULT 0,
	total_found INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS work_blocks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	search_job_id INTEGER NOT NULL REFERENCES search_jobs(id),
	block_start INTEGER NOT NULL,
	block_end INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'available',
	claimed_by TEXT NOT NULL DEFAULT '',
	claimed_at DATETIME,
	completed_at DATETIME,
	tested INTEGER NOT NULL DEFAULT 0,
	found INTEGER NOT NULL DEFAULT 0,
	block_checkpoint TEXT NOT NULL DEFAULT '',
	quorum_required INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_work_blocks_job_status ON work_blocks(search_job_id, status);
CREATE INDEX IF NOT EXISTS idx_work_blocks_claimed_at ON work_blocks(status, claimed_at);

CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	objective TEXT NOT NULL DEFAULT 'custom',
	form TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	target TEXT NOT NULL DEFAULT '{}',
	competitive TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '{}',
	infrastructure TEXT NOT NULL DEFAULT '',
	budget TEXT NOT NULL DEFAULT '',
	total_tested INTEGER NOT NULL DEFAULT 0,
	total_found INTEGER NOT NULL DEFAULT 0,
	best_prime_id INTEGER,
	best_digits INTEGER NOT NULL DEFAULT 0,
	total_core_hours REAL NOT NULL DEFAULT 0,
	total_cost_usd REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS project_phases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	phase_order INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	search_params TEXT NOT NULL DEFAULT '{}',
	block_size INTEGER NOT NULL DEFAULT 0,
	depends_on TEXT NOT NULL DEFAULT '[]',
	activation_condition TEXT NOT NULL DEFAULT '',
	completion_condition TEXT NOT NULL DEFAULT 'all_blocks_done',
	search_job_id INTEGER,
	total_tested INTEGER NOT NULL DEFAULT 0,
	total_found INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_project_phases_project_name ON project_phases(project_id, name);

CREATE TABLE IF NOT EXISTS records (
	form TEXT NOT NULL,
	category TEXT NOT NULL,
	expression TEXT NOT NULL DEFAULT '',
	digits INTEGER NOT NULL DEFAULT 0,
	holder TEXT NOT NULL DEFAULT '',
	discovered_at DATETIME,
	source TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	our_best_id INTEGER,
	our_best_digits INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (form, category)
);

CREATE TABLE IF NOT EXISTS decision_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tick_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	decision_type TEXT NOT NULL,
	form TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL DEFAULT '',
	reasoning TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	params TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_decision_audit_tick ON decision_audit(tick_id, seq);

CREATE TABLE IF NOT EXISTS cost_observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	form TEXT NOT NULL,
	digits INTEGER NOT NULL,
	secs REAL NOT NULL,
	accelerator BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_cost_observations_form ON cost_observations(form);

CREATE TABLE IF NOT EXISTS cost_calibrations (
	form TEXT PRIMARY KEY,
	coeff_a REAL NOT NULL,
	coeff_b REAL NOT NULL,
	sample_count INTEGER NOT NULL DEFAULT 0,
	avg_error_pct REAL NOT NULL DEFAULT 0,
	accelerator_divisor REAL NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS engine_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	scoring_weights TEXT NOT NULL DEFAULT '{}',
	cost_model_version INTEGER NOT NULL DEFAULT 0,
	tick_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Open creates or opens a SQLite database at path and ensures the schema
// exists. WAL journaling plus a busy timeout so concurrent
// worker/coordinator writers block briefly rather than fail outright;
// transactions begin IMMEDIATE so they take the write lock up front instead
// of failing with SQLITE_BUSY when a read upgrades to a write.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// migrate applies incremental schema changes for databases created before
// the accelerator_divisor column existed.
func migrate(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('cost_calibrations') WHERE name = 'accelerator_divisor'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check accelerator_divisor column: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE cost_calibrations ADD COLUMN accelerator_divisor REAL NOT NULL DEFAULT 1`); err != nil {
			return fmt.Errorf("add accelerator_divisor column: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers (tests, migrations) that need it.
func (s *Store) DB() *sql.DB {
	return s.db
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

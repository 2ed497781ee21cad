package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Project mirrors the projects row.
type Project struct {
	ID             int64
	Slug           string
	Name           string
	Description    string
	Objective      string
	Form           string
	Status         string
	Target         map[string]any
	Competitive    string // opaque JSON blob, nil-able
	Strategy       map[string]any
	Infrastructure string
	Budget         string
	TotalTested    int64
	TotalFound     int64
	BestPrimeID    *int64
	BestDigits     int64
	TotalCoreHours float64
	TotalCostUSD   float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Phase mirrors the project_phases row.
type Phase struct {
	ID                  int64
	ProjectID           int64
	Name                string
	Order               int
	Status              string
	SearchParams        map[string]any
	BlockSize           uint64
	DependsOn           []string
	ActivationCondition string
	CompletionCondition string
	SearchJobID         *int64
	TotalTested         int64
	TotalFound          int64
}

// CreateProject inserts a projects row with p.Status, or "draft" when it is
// empty.
func (s *Store) CreateProject(p Project) (int64, error) {
	target, err := json.Marshal(p.Target)
	if err != nil {
		return 0, fmt.Errorf("store: create project: marshal target: %w", err)
	}
	strategy, err := json.Marshal(p.Strategy)
	if err != nil {
		return 0, fmt.Errorf("store: create project: marshal strategy: %w", err)
	}
	status := p.Status
	if status == "" {
		status = "draft"
	}
	res, err := s.db.Exec(
		`INSERT INTO projects (slug, name, description, objective, form, status, target, competitive,
		                        strategy, infrastructure, budget)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Name, p.Description, p.Objective, p.Form, status, string(target), p.Competitive,
		string(strategy), p.Infrastructure, p.Budget,
	)
	if err != nil {
		return 0, fmt.Errorf("store: create project %s: %w", p.Slug, err)
	}
	return res.LastInsertId()
}

// GetProject loads a project by id.
func (s *Store) GetProject(id int64) (*Project, error) {
	row := s.db.QueryRow(
		`SELECT id, slug, name, description, objective, form, status, target, competitive, strategy,
		        infrastructure, budget, total_tested, total_found, best_prime_id, best_digits,
		        total_core_hours, total_cost_usd, created_at, updated_at
		 FROM projects WHERE id = ?`, id,
	)
	return scanProject(row)
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var target, strategy string
	var bestPrimeID sql.NullInt64
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Objective, &p.Form, &p.Status, &target,
		&p.Competitive, &strategy, &p.Infrastructure, &p.Budget, &p.TotalTested, &p.TotalFound, &bestPrimeID,
		&p.BestDigits, &p.TotalCoreHours, &p.TotalCostUSD, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan project: %w", err)
	}
	if target != "" {
		_ = json.Unmarshal([]byte(target), &p.Target)
	}
	if strategy != "" {
		_ = json.Unmarshal([]byte(strategy), &p.Strategy)
	}
	if bestPrimeID.Valid {
		p.BestPrimeID = &bestPrimeID.Int64
	}
	return &p, nil
}

// ListActiveProjects returns every project whose status is active or
// paused, the set the OODA tick and project engine iterate over each tick.
func (s *Store) ListActiveProjects() ([]Project, error) {
	rows, err := s.db.Query(
		`SELECT id, slug, name, description, objective, form, status, target, competitive, strategy,
		        infrastructure, budget, total_tested, total_found, best_prime_id, best_digits,
		        total_core_hours, total_cost_usd, created_at, updated_at
		 FROM projects WHERE status IN ('active', 'paused') ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list active projects: %w", err)
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		var target, strategy string
		var bestPrimeID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Objective, &p.Form, &p.Status, &target,
			&p.Competitive, &strategy, &p.Infrastructure, &p.Budget, &p.TotalTested, &p.TotalFound, &bestPrimeID,
			&p.BestDigits, &p.TotalCoreHours, &p.TotalCostUSD, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: list active projects: scan: %w", err)
		}
		if target != "" {
			_ = json.Unmarshal([]byte(target), &p.Target)
		}
		if strategy != "" {
			_ = json.Unmarshal([]byte(strategy), &p.Strategy)
		}
		if bestPrimeID.Valid {
			p.BestPrimeID = &bestPrimeID.Int64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectByForm returns the first active/paused/draft project targeting a
// given form and objective, used by the decision engine to avoid
// double-creating a project for a form that already has one and to find
// an existing verification project.
func (s *Store) ProjectByForm(form, objective string) (*Project, error) {
	row := s.db.QueryRow(
		`SELECT id, slug, name, description, objective, form, status, target, competitive, strategy,
		        infrastructure, budget, total_tested, total_found, best_prime_id, best_digits,
		        total_core_hours, total_cost_usd, created_at, updated_at
		 FROM projects WHERE form = ? AND objective = ? AND status IN ('draft','active','paused')
		 ORDER BY id DESC LIMIT 1`, form, objective,
	)
	return scanProject(row)
}

// SetProjectStatus transitions a project's status.
func (s *Store) SetProjectStatus(id int64, status string) error {
	_, err := s.db.Exec(`UPDATE projects SET status = ?, updated_at = datetime('now') WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("store: set project %d status %s: %w", id, status, err)
	}
	return nil
}

// UpdateProjectTotals aggregates phase totals and cost back onto the
// project row.
func (s *Store) UpdateProjectTotals(id int64, totalTested, totalFound int64, coreHours, costUSD float64) error {
	_, err := s.db.Exec(
		`UPDATE projects SET total_tested = ?, total_found = ?, total_core_hours = ?, total_cost_usd = ?,
		 updated_at = datetime('now') WHERE id = ?`,
		totalTested, totalFound, coreHours, costUSD, id,
	)
	if err != nil {
		return fmt.Errorf("store: update project totals %d: %w", id, err)
	}
	return nil
}

// SetProjectBestPrime links the best discovered prime for a project's form.
func (s *Store) SetProjectBestPrime(id int64, primeID int64, digits int64) error {
	_, err := s.db.Exec(
		`UPDATE projects SET best_prime_id = ?, best_digits = ?, updated_at = datetime('now') WHERE id = ?`,
		primeID, digits, id,
	)
	if err != nil {
		return fmt.Errorf("store: set project best prime %d: %w", id, err)
	}
	return nil
}

// CreatePhase inserts a project_phases row.
func (s *Store) CreatePhase(p Phase) (int64, error) {
	params, err := json.Marshal(p.SearchParams)
	if err != nil {
		return 0, fmt.Errorf("store: create phase %s: marshal search_params: %w", p.Name, err)
	}
	deps, err := json.Marshal(p.DependsOn)
	if err != nil {
		return 0, fmt.Errorf("store: create phase %s: marshal depends_on: %w", p.Name, err)
	}
	status := p.Status
	if status == "" {
		status = "pending"
	}
	completion := p.CompletionCondition
	if completion == "" {
		completion = "all_blocks_done"
	}
	res, err := s.db.Exec(
		`INSERT INTO project_phases (project_id, name, phase_order, status, search_params, block_size,
		                              depends_on, activation_condition, completion_condition)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProjectID, p.Name, p.Order, status, string(params), p.BlockSize, string(deps),
		p.ActivationCondition, completion,
	)
	if err != nil {
		return 0, fmt.Errorf("store: create phase %s: %w", p.Name, err)
	}
	return res.LastInsertId()
}

// ListPhases returns every phase of a project, ordered by phase_order.
func (s *Store) ListPhases(projectID int64) ([]Phase, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, name, phase_order, status, search_params, block_size, depends_on,
		        activation_condition, completion_condition, search_job_id, total_tested, total_found
		 FROM project_phases WHERE project_id = ? ORDER BY phase_order ASC, id ASC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list phases for project %d: %w", projectID, err)
	}
	defer rows.Close()
	var out []Phase
	for rows.Next() {
		p, err := scanPhaseRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPhaseRows(rows *sql.Rows) (Phase, error) {
	var p Phase
	var params, deps string
	var jobID sql.NullInt64
	if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Order, &p.Status, &params, &p.BlockSize, &deps,
		&p.ActivationCondition, &p.CompletionCondition, &jobID, &p.TotalTested, &p.TotalFound); err != nil {
		return p, fmt.Errorf("store: scan phase: %w", err)
	}
	if params != "" {
		_ = json.Unmarshal([]byte(params), &p.SearchParams)
	}
	if deps != "" {
		_ = json.Unmarshal([]byte(deps), &p.DependsOn)
	}
	if jobID.Valid {
		p.SearchJobID = &jobID.Int64
	}
	return p, nil
}

// GetPhaseByName loads a phase by its (unique within project) name.
func (s *Store) GetPhaseByName(projectID int64, name string) (*Phase, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, name, phase_order, status, search_params, block_size, depends_on,
		        activation_condition, completion_condition, search_job_id, total_tested, total_found
		 FROM project_phases WHERE project_id = ? AND name = ?`, projectID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get phase %s: %w", name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanPhaseRows(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPhaseStatus transitions a phase's status.
func (s *Store) SetPhaseStatus(id int64, status string) error {
	_, err := s.db.Exec(`UPDATE project_phases SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("store: set phase %d status %s: %w", id, status, err)
	}
	return nil
}

// LinkPhaseJob attaches a created search job to a phase and marks it
// active.
func (s *Store) LinkPhaseJob(phaseID, jobID int64) error {
	_, err := s.db.Exec(`UPDATE project_phases SET search_job_id = ?, status = 'active' WHERE id = ?`, jobID, phaseID)
	if err != nil {
		return fmt.Errorf("store: link phase %d to job %d: %w", phaseID, jobID, err)
	}
	return nil
}

// UpdatePhaseTotals records a phase's aggregated tested/found counts.
func (s *Store) UpdatePhaseTotals(id int64, tested, found int64) error {
	_, err := s.db.Exec(`UPDATE project_phases SET total_tested = ?, total_found = ? WHERE id = ?`, tested, found, id)
	if err != nil {
		return fmt.Errorf("store: update phase totals %d: %w", id, err)
	}
	return nil
}

// Record mirrors the records row.
type Record struct {
	Form          string
	Category      string
	Expression    string
	Digits        int64
	Holder        string
	DiscoveredAt  *time.Time
	Source        string
	SourceURL     string
	OurBestID     *int64
	OurBestDigits int64
}

// UpsertRecord inserts or updates a world-record tracking row, seeded from
// project config's competitive table.
func (s *Store) UpsertRecord(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO records (form, category, expression, digits, holder, discovered_at, source, source_url,
		                       our_best_id, our_best_digits)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(form, category) DO UPDATE SET
		   expression = excluded.expression,
		   digits = excluded.digits,
		   holder = excluded.holder,
		   discovered_at = excluded.discovered_at,
		   source = excluded.source,
		   source_url = excluded.source_url`,
		r.Form, r.Category, r.Expression, r.Digits, r.Holder, nullTime(r.DiscoveredAt), r.Source, r.SourceURL,
		r.OurBestID, r.OurBestDigits,
	)
	if err != nil {
		return fmt.Errorf("store: upsert record %s/%s: %w", r.Form, r.Category, err)
	}
	return nil
}

// RecordBestPrime updates a record row's our_best columns, called only when
// darkreach's own search beats the previously stored value.
func (s *Store) RecordBestPrime(form, category string, primeID, digits int64) error {
	_, err := s.db.Exec(
		`UPDATE records SET our_best_id = ?, our_best_digits = ? WHERE form = ? AND category = ?`,
		primeID, digits, form, category,
	)
	if err != nil {
		return fmt.Errorf("store: record best prime %s/%s: %w", form, category, err)
	}
	return nil
}

// GetRecord loads a world-record row by form and category.
func (s *Store) GetRecord(form, category string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT form, category, expression, digits, holder, discovered_at, source, source_url,
		        our_best_id, our_best_digits
		 FROM records WHERE form = ? AND category = ?`, form, category,
	)
	var r Record
	var discoveredAt sql.NullTime
	var ourBestID sql.NullInt64
	if err := row.Scan(&r.Form, &r.Category, &r.Expression, &r.Digits, &r.Holder, &discoveredAt, &r.Source,
		&r.SourceURL, &ourBestID, &r.OurBestDigits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get record %s/%s: %w", form, category, err)
	}
	if discoveredAt.Valid {
		r.DiscoveredAt = &discoveredAt.Time
	}
	if ourBestID.Valid {
		r.OurBestID = &ourBestID.Int64
	}
	return &r, nil
}

// ListRecords returns every tracked world-record row, used by OBSERVE to
// build the snapshot's record_gap inputs.
func (s *Store) ListRecords() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT form, category, expression, digits, holder, discovered_at, source, source_url,
		        our_best_id, our_best_digits FROM records`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var discoveredAt sql.NullTime
		var ourBestID sql.NullInt64
		if err := rows.Scan(&r.Form, &r.Category, &r.Expression, &r.Digits, &r.Holder, &discoveredAt, &r.Source,
			&r.SourceURL, &ourBestID, &r.OurBestDigits); err != nil {
			return nil, fmt.Errorf("store: list records: scan: %w", err)
		}
		if discoveredAt.Valid {
			r.DiscoveredAt = &discoveredAt.Time
		}
		if ourBestID.Valid {
			r.OurBestID = &ourBestID.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

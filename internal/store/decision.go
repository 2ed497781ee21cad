package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DecisionAuditEntry mirrors the decision_audit row.
type DecisionAuditEntry struct {
	ID           int64
	TickID       string
	Seq          int
	DecisionType string
	Form         string
	Action       string
	Reasoning    string
	Confidence   float64
	Params       map[string]any
	CreatedAt    time.Time
}

// InsertDecisionAudit appends one row to the audit log. The table is
// append-only; entries within a tick are ordered
// by Seq, matching their generation order in DECIDE.
func (s *Store) InsertDecisionAudit(e DecisionAuditEntry) error {
	params, err := json.Marshal(e.Params)
	if err != nil {
		return fmt.Errorf("store: insert decision audit: marshal params: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO decision_audit (tick_id, seq, decision_type, form, action, reasoning, confidence, params)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TickID, e.Seq, e.DecisionType, e.Form, e.Action, e.Reasoning, e.Confidence, string(params),
	)
	if err != nil {
		return fmt.Errorf("store: insert decision audit: %w", err)
	}
	return nil
}

// ListDecisionAudit returns the most recent n audit entries, newest first.
func (s *Store) ListDecisionAudit(n int) ([]DecisionAuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, tick_id, seq, decision_type, form, action, reasoning, confidence, params, created_at
		 FROM decision_audit ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list decision audit: %w", err)
	}
	defer rows.Close()
	var out []DecisionAuditEntry
	for rows.Next() {
		var e DecisionAuditEntry
		var params string
		if err := rows.Scan(&e.ID, &e.TickID, &e.Seq, &e.DecisionType, &e.Form, &e.Action, &e.Reasoning,
			&e.Confidence, &params, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: list decision audit: scan: %w", err)
		}
		if params != "" {
			_ = json.Unmarshal([]byte(params), &e.Params)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CostObservation mirrors one row per completed block feeding the cost
// model.
type CostObservation struct {
	Form        string
	Digits      int64
	Secs        float64
	Accelerator bool
}

// InsertCostObservation records one completed block's (digits, secs) pair.
func (s *Store) InsertCostObservation(o CostObservation) error {
	_, err := s.db.Exec(
		`INSERT INTO cost_observations (form, digits, secs, accelerator) VALUES (?, ?, ?, ?)`,
		o.Form, o.Digits, o.Secs, o.Accelerator,
	)
	if err != nil {
		return fmt.Errorf("store: insert cost observation %s: %w", o.Form, err)
	}
	return nil
}

// CostObservationsFor returns every observation recorded for a form, the
// input to LEARN's power-law fit.
func (s *Store) CostObservationsFor(form string) ([]CostObservation, error) {
	rows, err := s.db.Query(`SELECT form, digits, secs, accelerator FROM cost_observations WHERE form = ?`, form)
	if err != nil {
		return nil, fmt.Errorf("store: cost observations for %s: %w", form, err)
	}
	defer rows.Close()
	var out []CostObservation
	for rows.Next() {
		var o CostObservation
		if err := rows.Scan(&o.Form, &o.Digits, &o.Secs, &o.Accelerator); err != nil {
			return nil, fmt.Errorf("store: cost observations for %s: scan: %w", form, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DistinctCostObservationForms lists every form with at least one recorded
// cost observation, so LEARN knows which forms to attempt fitting.
func (s *Store) DistinctCostObservationForms() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT form FROM cost_observations`)
	if err != nil {
		return nil, fmt.Errorf("store: distinct cost observation forms: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("store: distinct cost observation forms: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CostCalibration mirrors the cost_calibrations row.
type CostCalibration struct {
	Form               string
	CoeffA             float64
	CoeffB             float64
	SampleCount        int
	AvgErrorPct        float64
	AcceleratorDivisor float64
	UpdatedAt          time.Time
}

// UpsertCostCalibration stores a newly fitted (a, b) pair for a form.
func (s *Store) UpsertCostCalibration(c CostCalibration) error {
	if c.AcceleratorDivisor <= 0 {
		c.AcceleratorDivisor = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO cost_calibrations (form, coeff_a, coeff_b, sample_count, avg_error_pct, accelerator_divisor, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(form) DO UPDATE SET
		   coeff_a = excluded.coeff_a,
		   coeff_b = excluded.coeff_b,
		   sample_count = excluded.sample_count,
		   avg_error_pct = excluded.avg_error_pct,
		   accelerator_divisor = excluded.accelerator_divisor,
		   updated_at = datetime('now')`,
		c.Form, c.CoeffA, c.CoeffB, c.SampleCount, c.AvgErrorPct, c.AcceleratorDivisor,
	)
	if err != nil {
		return fmt.Errorf("store: upsert cost calibration %s: %w", c.Form, err)
	}
	return nil
}

// GetCostCalibration loads the fitted coefficients for a form, if any.
func (s *Store) GetCostCalibration(form string) (*CostCalibration, error) {
	row := s.db.QueryRow(
		`SELECT form, coeff_a, coeff_b, sample_count, avg_error_pct, accelerator_divisor, updated_at
		 FROM cost_calibrations WHERE form = ?`, form,
	)
	var c CostCalibration
	if err := row.Scan(&c.Form, &c.CoeffA, &c.CoeffB, &c.SampleCount, &c.AvgErrorPct, &c.AcceleratorDivisor, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get cost calibration %s: %w", form, err)
	}
	return &c, nil
}

// ListCostCalibrations returns every fitted calibration row.
func (s *Store) ListCostCalibrations() ([]CostCalibration, error) {
	rows, err := s.db.Query(
		`SELECT form, coeff_a, coeff_b, sample_count, avg_error_pct, accelerator_divisor, updated_at FROM cost_calibrations`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list cost calibrations: %w", err)
	}
	defer rows.Close()
	var out []CostCalibration
	for rows.Next() {
		var c CostCalibration
		if err := rows.Scan(&c.Form, &c.CoeffA, &c.CoeffB, &c.SampleCount, &c.AvgErrorPct, &c.AcceleratorDivisor, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: list cost calibrations: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EngineState mirrors the singleton engine_state row.
type EngineState struct {
	ScoringWeights   map[string]float64
	CostModelVersion int
	TickCount        int64
}

// GetEngineState loads the singleton engine_state row, or zero-value if
// never persisted.
func (s *Store) GetEngineState() (EngineState, error) {
	row := s.db.QueryRow(`SELECT scoring_weights, cost_model_version, tick_count FROM engine_state WHERE id = 1`)
	var st EngineState
	var weights string
	if err := row.Scan(&weights, &st.CostModelVersion, &st.TickCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EngineState{}, nil
		}
		return EngineState{}, fmt.Errorf("store: get engine state: %w", err)
	}
	if weights != "" {
		_ = json.Unmarshal([]byte(weights), &st.ScoringWeights)
	}
	return st, nil
}

// SaveEngineState upserts the singleton engine_state row at the end of
// every tick.
func (s *Store) SaveEngineState(st EngineState) error {
	weights, err := json.Marshal(st.ScoringWeights)
	if err != nil {
		return fmt.Errorf("store: save engine state: marshal weights: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO engine_state (id, scoring_weights, cost_model_version, tick_count, updated_at)
		 VALUES (1, ?, ?, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET
		   scoring_weights = excluded.scoring_weights,
		   cost_model_version = excluded.cost_model_version,
		   tick_count = excluded.tick_count,
		   updated_at = datetime('now')`,
		string(weights), st.CostModelVersion, st.TickCount,
	)
	if err != nil {
		return fmt.Errorf("store: save engine state: %w", err)
	}
	return nil
}

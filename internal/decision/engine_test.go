package decision

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/project"
	"github.com/darkreach/darkreach/internal/store"
)

func newTestDecisionEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	mgr := config.NewManager(config.Default())
	coord := coordinator.New(st, mgr, nil)
	projEngine := project.New(coord, mgr, nil)
	return New(coord, projEngine, mgr, nil), st
}

func decisionAuditForTick(st *store.Store, tickID string) ([]store.DecisionAuditEntry, error) {
	entries, err := st.ListDecisionAudit(1000)
	if err != nil {
		return nil, err
	}
	var matched []store.DecisionAuditEntry
	for _, e := range entries {
		if e.TickID == tickID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// TestEngineTickWritesDecisionAudit checks that every tick writes at
// least one decision_audit row, end to end through the full
// OBSERVE->ORIENT->DECIDE->ACT pipeline against a real (empty) store.
func TestEngineTickWritesDecisionAudit(t *testing.T) {
	eng, st := newTestDecisionEngine(t)

	result, err := eng.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(result.Decisions) == 0 {
		t.Fatalf("expected at least one decision")
	}
	if result.TickID == "" {
		t.Fatalf("expected a generated tick id")
	}

	entries, err := decisionAuditForTick(st, result.TickID)
	if err != nil {
		t.Fatalf("list decision audit: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one decision_audit row for tick %s", result.TickID)
	}
}

package coordinator

import (
	"path/filepath"
	"testing"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/store"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	mgr := config.NewManager(config.Default())
	return New(st, mgr, nil)
}

func TestQuorumForDefaultsToUnverified(t *testing.T) {
	c := newTestCoordinator(t)
	if got := c.QuorumFor(""); got != 3 {
		t.Fatalf("expected default unverified quorum 3, got %d", got)
	}
	if got := c.QuorumFor("trusted"); got != 1 {
		t.Fatalf("expected trusted quorum 1, got %d", got)
	}
	if got := c.QuorumFor("unknown-tier"); got != 3 {
		t.Fatalf("expected fallback quorum 3 for unknown tier, got %d", got)
	}
}

func TestCreateJobAndClaimLifecycle(t *testing.T) {
	c := newTestCoordinator(t)
	jobID, err := c.CreateJob("wagstaff", map[string]any{}, 3, 12, 3, "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	block, err := c.ClaimBlock(jobID, "worker-1")
	if err != nil {
		t.Fatalf("claim block: %v", err)
	}
	if block.QuorumRequired != 3 {
		t.Fatalf("expected quorum_required 3, got %d", block.QuorumRequired)
	}

	obs := &store.CostObservation{Form: "wagstaff", Digits: 3, Secs: 1.5}
	if err := c.CompleteBlock(block.ID, 3, 1, obs); err != nil {
		t.Fatalf("complete block: %v", err)
	}

	summary, err := c.JobSummary(jobID)
	if err != nil {
		t.Fatalf("job summary: %v", err)
	}
	if summary.Completed != 1 || summary.TotalTested != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	obsRows, err := c.Store().CostObservationsFor("wagstaff")
	if err != nil {
		t.Fatalf("cost observations: %v", err)
	}
	if len(obsRows) != 1 {
		t.Fatalf("expected 1 cost observation recorded on completion, got %d", len(obsRows))
	}
}

package project

import (
	"path/filepath"
	"testing"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *coordinator.Coordinator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	mgr := config.NewManager(config.Default())
	coord := coordinator.New(st, mgr, nil)
	return New(coord, mgr, nil), coord, st
}

// TestAdaptiveFollowUpCreatesExactlyOneExtendPhase covers the "sweep found
// nothing" follow-up path: completing a phase with zero
// primes produces a single sibling "<phase>-extend" phase over the next
// equal-sized range, and ticking again after that phase also empties out
// does not chain a second "-extend-extend" phase beyond the one expected.
func TestAdaptiveFollowUpCreatesExactlyOneExtendPhase(t *testing.T) {
	eng, coord, st := newTestEngine(t)

	projectID, err := st.CreateProject(store.Project{
		Slug: "sweep-test", Name: "sweep test", Form: "twin", Status: "active",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	_, err = st.CreatePhase(store.Phase{
		ProjectID: projectID,
		Name:      "sweep",
		Status:    "pending",
		SearchParams: map[string]any{
			"range_start": uint64(1),
			"range_end":   uint64(1000),
		},
		BlockSize:           500,
		CompletionCondition: "all_blocks_done",
	})
	if err != nil {
		t.Fatalf("create phase: %v", err)
	}

	if _, err := st.HeartbeatWorker(store.Worker{WorkerID: "worker-1", Hostname: "worker-1", Cores: 4}); err != nil {
		t.Fatalf("seed worker: %v", err)
	}

	if err := eng.Tick(); err != nil {
		t.Fatalf("tick (activate): %v", err)
	}

	phase, err := st.GetPhaseByName(projectID, "sweep")
	if err != nil || phase == nil {
		t.Fatalf("get phase: %v, %+v", err, phase)
	}
	if phase.Status != "active" || phase.SearchJobID == nil {
		t.Fatalf("expected sweep phase to be activated with a job, got %+v", phase)
	}

	jobID := *phase.SearchJobID
	summary, err := coord.JobSummary(jobID)
	if err != nil {
		t.Fatalf("job summary: %v", err)
	}
	for i := 0; i < summary.Available; i++ {
		b, err := coord.ClaimBlock(jobID, "worker-1")
		if err != nil {
			t.Fatalf("claim block: %v", err)
		}
		if err := coord.CompleteBlock(b.ID, 100, 0, nil); err != nil {
			t.Fatalf("complete block: %v", err)
		}
	}

	if err := eng.Tick(); err != nil {
		t.Fatalf("tick (complete+followup): %v", err)
	}

	extend, err := st.GetPhaseByName(projectID, "sweep-extend")
	if err != nil || extend == nil {
		t.Fatalf("expected sweep-extend phase to exist, got %v, %+v", err, extend)
	}
	if extend.ActivationCondition != "previous_phase_found_zero" {
		t.Fatalf("expected activation_condition previous_phase_found_zero, got %q", extend.ActivationCondition)
	}
	start, end, ok := rangeFromSearchParams(extend.SearchParams)
	if !ok || start != 1001 || end != 2001 {
		t.Fatalf("expected sweep-extend range [1001,2001), got [%d,%d) ok=%v", start, end, ok)
	}
	if len(extend.DependsOn) != 1 || extend.DependsOn[0] != "sweep" {
		t.Fatalf("expected sweep-extend to depend on sweep, got %v", extend.DependsOn)
	}

	if err := eng.Tick(); err != nil {
		t.Fatalf("tick (activate extend): %v", err)
	}
	if extendExtend, err := st.GetPhaseByName(projectID, "sweep-extend-extend"); err != nil || extendExtend != nil {
		t.Fatalf("expected no sweep-extend-extend phase yet, got %v, %+v", err, extendExtend)
	}

	phases, err := st.ListPhases(projectID)
	if err != nil {
		t.Fatalf("list phases: %v", err)
	}
	count := 0
	for _, p := range phases {
		if p.Name == "sweep-extend" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one sweep-extend phase, found %d", count)
	}

	// Drain the extend phase with zero finds too: the follow-up chain must
	// stop here, never producing sweep-extend-extend.
	extend, err = st.GetPhaseByName(projectID, "sweep-extend")
	if err != nil || extend == nil || extend.SearchJobID == nil {
		t.Fatalf("expected sweep-extend active with a job, got %v, %+v", err, extend)
	}
	extendJob := *extend.SearchJobID
	extendSummary, err := coord.JobSummary(extendJob)
	if err != nil {
		t.Fatalf("extend job summary: %v", err)
	}
	for i := 0; i < extendSummary.Available; i++ {
		b, err := coord.ClaimBlock(extendJob, "worker-1")
		if err != nil {
			t.Fatalf("claim extend block: %v", err)
		}
		if err := coord.CompleteBlock(b.ID, 100, 0, nil); err != nil {
			t.Fatalf("complete extend block: %v", err)
		}
	}
	if err := eng.Tick(); err != nil {
		t.Fatalf("tick (complete extend): %v", err)
	}
	if ee, err := st.GetPhaseByName(projectID, "sweep-extend-extend"); err != nil || ee != nil {
		t.Fatalf("sweep-extend-extend must never be generated, got %v, %+v", err, ee)
	}
}

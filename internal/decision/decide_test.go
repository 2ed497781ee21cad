package decision

import (
	"strings"
	"testing"

	"github.com/darkreach/darkreach/internal/config"
)

// TestDecideBudgetGateEmitsSingleNoAction: with budget_remaining (5) below
// min_budget_for_project (12.5), and not above max_per_project_budget_usd/2
// (12.5), rule 3 proposes no CreateProject, and the output must contain
// exactly one NoAction whose reason names the budget.
func TestDecideBudgetGateEmitsSingleNoAction(t *testing.T) {
	cfg := config.Default()
	cfg.OODA.MonthlyBudgetUSD = 500
	cfg.OODA.MinBudgetForProject = 12.5
	cfg.OODA.MaxPerProjectBudgetUSD = 25
	cfg.OODA.MinIdleWorkersToCreate = 1
	cfg.OODA.MaxConcurrentProjects = 6

	snap := WorldSnapshot{
		Fleet:          Fleet{WorkerCount: 8, TotalCores: 32, IdleWorkers: 4},
		MonthlyCostUSD: 495, // budget_remaining = 500 - 495 = 5, below min_budget_for_project
	}

	scores := Orient(snap, cfg)
	decisions := Decide(snap, scores, DriftReport{}, cfg)

	noActions := 0
	for _, d := range decisions {
		if d.Type == DecisionNoAction {
			noActions++
		}
		if d.Type == DecisionCreateProject {
			t.Fatalf("expected no CreateProject decision with budget_remaining below min_budget_for_project, got one for form %s", d.Form)
		}
	}
	if len(decisions) != 1 || noActions != 1 {
		t.Fatalf("expected exactly one NoAction decision, got %d decisions (%d NoAction)", len(decisions), noActions)
	}
	if !strings.Contains(decisions[0].Reasoning, "budget") {
		t.Fatalf("expected NoAction to name the budget, got %q", decisions[0].Reasoning)
	}
}

// TestSafetyCheckRejectsOverBudgetCreateProject exercises the gate
// directly: a proposed budget above budget_remaining fails even when the
// minimum-budget condition passes.
func TestSafetyCheckRejectsOverBudgetCreateProject(t *testing.T) {
	limits := Limits{MaxProjects: 6, BudgetRemaining: 5, MinBudgetForProject: 12.5}
	d := Decision{Type: DecisionCreateProject, Form: "factorial", Params: map[string]any{"budget": 25.0}}

	ok, reason := safetyCheck(d, limits)
	if ok {
		t.Fatal("expected safety_check to reject CreateProject with budget 25 against remaining 5")
	}
	if !strings.Contains(reason, "budget") {
		t.Fatalf("expected rejection reason to name the budget, got %q", reason)
	}

	// Non-CreateProject decisions always pass.
	if ok, _ := safetyCheck(Decision{Type: DecisionPauseProject}, limits); !ok {
		t.Fatal("expected PauseProject to pass safety_check unconditionally")
	}
}

// TestDecideStalledJobPausesProject covers DECIDE rule 1: a stalled job in
// the drift report always produces a PauseProject decision regardless of
// budget state.
func TestDecideStalledJobPausesProject(t *testing.T) {
	cfg := config.Default()
	snap := WorldSnapshot{Fleet: Fleet{WorkerCount: 4, TotalCores: 16}}
	drift := DriftReport{StalledJobs: []StalledJobInfo{{JobID: 42, Form: "mersenne"}}}

	decisions := Decide(snap, Orient(snap, cfg), drift, cfg)

	found := false
	for _, d := range decisions {
		if d.Type == DecisionPauseProject && d.JobID == 42 && d.Form == "mersenne" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a PauseProject decision for stalled job 42, got %+v", decisions)
	}
}

// TestDecideNeverEmpty covers DECIDE rule 4: with no drift, no record
// proximity, and no idle capacity, exactly one NoAction is still emitted.
func TestDecideNeverEmpty(t *testing.T) {
	cfg := config.Default()
	cfg.OODA.MinIdleWorkersToCreate = 100 // unreachable, disables rule 3
	snap := WorldSnapshot{Fleet: Fleet{WorkerCount: 1, IdleWorkers: 0}}

	decisions := Decide(snap, Orient(snap, cfg), DriftReport{}, cfg)
	if len(decisions) != 1 || decisions[0].Type != DecisionNoAction {
		t.Fatalf("expected exactly one NoAction, got %+v", decisions)
	}
}

package decision

import (
	"fmt"

	"github.com/darkreach/darkreach/internal/config"
)

// DecisionType enumerates the ACT-stage variants DECIDE can emit.
type DecisionType string

const (
	DecisionCreateProject     DecisionType = "create_project"
	DecisionPauseProject      DecisionType = "pause_project"
	DecisionExtendProject     DecisionType = "extend_project"
	DecisionAbandonProject    DecisionType = "abandon_project"
	DecisionRebalanceFleet    DecisionType = "rebalance_fleet"
	DecisionRequestAgentIntel DecisionType = "request_agent_intel"
	DecisionVerifyResult      DecisionType = "verify_result"
	DecisionNoAction          DecisionType = "no_action"
)

// Decision is one entry in DECIDE's ordered output list.
type Decision struct {
	Type       DecisionType
	Form       string
	JobID      int64
	Reasoning  string
	Confidence float64
	Params     map[string]any
}

// Limits carries the inputs safety_check gates CreateProject against.
type Limits struct {
	MaxProjects         int
	BudgetRemaining     float64
	MinBudgetForProject float64
}

// safetyCheck reports whether d may proceed to ACT. Only CreateProject
// currently has a gating rule; every other decision type always passes.
func safetyCheck(d Decision, limits Limits) (bool, string) {
	if d.Type != DecisionCreateProject {
		return true, ""
	}
	if limits.BudgetRemaining < limits.MinBudgetForProject {
		return false, fmt.Sprintf("budget_remaining %.2f below min_budget_for_project %.2f", limits.BudgetRemaining, limits.MinBudgetForProject)
	}
	budget, _ := d.Params["budget"].(float64)
	if budget > limits.BudgetRemaining {
		return false, fmt.Sprintf("requested budget %.2f exceeds budget_remaining %.2f", budget, limits.BudgetRemaining)
	}
	return true, ""
}

// Decide turns a DriftReport and scored forms into an ordered decision
// list, gating every decision through safety_check before it is returned.
// Rejected decisions are dropped; when nothing passes, a single NoAction
// naming the last rejection reason (or why rule 3 was skipped) is returned.
func Decide(snap WorldSnapshot, scores []FormScore, drift DriftReport, cfg *config.Config) []Decision {
	var decisions []Decision

	hasActiveProject := make(map[string]bool, len(snap.ActiveProjects))
	hasVerifyProject := make(map[string]bool)
	for _, p := range snap.ActiveProjects {
		hasActiveProject[p.Form] = true
		if p.Objective == "verification" {
			hasVerifyProject[p.Form] = true
		}
	}

	// Rule 1: stalled jobs pause their project.
	for _, sj := range drift.StalledJobs {
		decisions = append(decisions, Decision{
			Type:       DecisionPauseProject,
			Form:       sj.Form,
			JobID:      sj.JobID,
			Reasoning:  fmt.Sprintf("job %d for form %s stalled (running with zero tested)", sj.JobID, sj.Form),
			Confidence: 0.9,
		})
	}

	// Rule 2: records within proximity threshold get a verification project.
	recordIndex := buildRecordIndex(snap.Records)
	threshold := cfg.OODA.RecordProximityThreshold
	for _, sc := range scores {
		r, ok := recordIndex[sc.Form]
		if !ok || r.Digits <= 0 || r.OurBestDigits <= 0 {
			continue
		}
		proximity := float64(r.OurBestDigits) / float64(r.Digits)
		if proximity < (1 - threshold) {
			continue
		}
		if hasVerifyProject[sc.Form] {
			continue
		}
		decisions = append(decisions, Decision{
			Type:       DecisionVerifyResult,
			Form:       sc.Form,
			Reasoning:  fmt.Sprintf("our best (%d digits) is within %.0f%% of the record (%d digits)", r.OurBestDigits, threshold*100, r.Digits),
			Confidence: proximity,
		})
	}

	// Rule 3: spend idle capacity on new projects for top-scoring eligible forms.
	budgetRemaining := cfg.OODA.MonthlyBudgetUSD - snap.MonthlyCostUSD
	var rule3SkipReason string
	if snap.Fleet.IdleWorkers >= cfg.OODA.MinIdleWorkersToCreate &&
		len(snap.ActiveProjects) < cfg.OODA.MaxConcurrentProjects &&
		budgetRemaining <= cfg.OODA.MaxPerProjectBudgetUSD/2 {
		rule3SkipReason = fmt.Sprintf("budget_remaining %.2f too low for a new project (needs > %.2f)", budgetRemaining, cfg.OODA.MaxPerProjectBudgetUSD/2)
	}
	if snap.Fleet.IdleWorkers >= cfg.OODA.MinIdleWorkersToCreate &&
		len(snap.ActiveProjects) < cfg.OODA.MaxConcurrentProjects &&
		budgetRemaining > cfg.OODA.MaxPerProjectBudgetUSD/2 {

		slots := portfolioSlots(snap.Fleet.WorkerCount, len(snap.ActiveProjects))
		if slots > 2 {
			slots = 2
		}
		taken := 0
		for _, sc := range scores {
			if taken >= slots {
				break
			}
			if hasActiveProject[sc.Form] || sc.Score == 0 {
				continue
			}
			budget := cfg.OODA.MaxPerProjectBudgetUSD
			if budgetRemaining < budget {
				budget = budgetRemaining
			}
			decisions = append(decisions, Decision{
				Type:       DecisionCreateProject,
				Form:       sc.Form,
				Reasoning:  fmt.Sprintf("form %s scored %.3f with %d idle workers available", sc.Form, sc.Score, snap.Fleet.IdleWorkers),
				Confidence: sc.Score,
				Params:     map[string]any{"budget": budget},
			})
			taken++
		}
	}

	limits := Limits{
		MaxProjects:         cfg.OODA.MaxConcurrentProjects,
		BudgetRemaining:     budgetRemaining,
		MinBudgetForProject: cfg.OODA.MinBudgetForProject,
	}
	gated := make([]Decision, 0, len(decisions))
	var lastRejectReason string
	for _, d := range decisions {
		ok, reason := safetyCheck(d, limits)
		if !ok {
			lastRejectReason = reason
			continue
		}
		gated = append(gated, d)
	}

	if len(gated) == 0 {
		reason := lastRejectReason
		if reason == "" {
			reason = rule3SkipReason
		}
		if reason == "" {
			reason = "no actionable drift, record proximity, or idle capacity this tick"
		}
		gated = append(gated, Decision{Type: DecisionNoAction, Reasoning: reason})
	}
	return gated
}

// portfolioSlots caps how many new projects a tick may propose given the
// current fleet size and existing project count. One new project per four
// workers, but a non-empty fleet with nothing running always gets one slot
// so a single-machine deployment can still start work.
func portfolioSlots(fleetSize, activeProjects int) int {
	slots := fleetSize/4 - activeProjects
	if slots < 1 && activeProjects == 0 && fleetSize > 0 {
		return 1
	}
	if slots < 0 {
		return 0
	}
	return slots
}

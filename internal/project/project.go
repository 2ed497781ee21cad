// Package project implements the project/phase engine: phase
// DAG advancement, adaptive follow-up generation, fleet-capacity gating,
// cost aggregation, and project-level status rollup. Phase relationships
// are represented as (name, []predecessor names) pairs resolved at each
// tick rather than an in-memory object graph.
package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/eventbus"
	"github.com/darkreach/darkreach/internal/forms"
	"github.com/darkreach/darkreach/internal/store"
)

// Engine advances every active project's phase DAG on each orchestration
// tick.
type Engine struct {
	coord  *coordinator.Coordinator
	cfgMgr config.ConfigManager
	events *eventbus.Bus
	logger *slog.Logger
}

// New constructs a project Engine.
func New(coord *coordinator.Coordinator, cfgMgr config.ConfigManager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{coord: coord, cfgMgr: cfgMgr, logger: logger}
}

// SetEventBus attaches an event bus for budget_alert/fleet_insufficient
// notifications. A nil bus (the default) means log-only.
func (e *Engine) SetEventBus(b *eventbus.Bus) {
	e.events = b
}

func (e *Engine) publish(kind string, data map[string]any) {
	if e.events != nil {
		e.events.Publish(eventbus.Event{Kind: kind, Data: data})
	}
}

// Fleet summarizes the worker pool for fleet-capacity checks. It is
// computed here (rather than only inside the decision engine) because the
// project engine's own job-creation gate needs it independently of an OODA
// tick.
type Fleet struct {
	WorkerCount       int
	TotalCores        int
	IdleWorkers       int
	ActiveSearchTypes map[string]bool
}

// ComputeFleet summarizes a worker listing into a Fleet snapshot.
func ComputeFleet(workers []store.Worker) Fleet {
	f := Fleet{ActiveSearchTypes: make(map[string]bool)}
	for _, w := range workers {
		f.WorkerCount++
		f.TotalCores += w.Cores
		busy := false
		if w.Metrics != nil {
			if _, ok := w.Metrics["current_block_id"]; ok {
				busy = true
			}
		}
		if !busy {
			f.IdleWorkers++
		}
		if w.SearchType != "" {
			f.ActiveSearchTypes[w.SearchType] = true
		}
	}
	return f
}

// CheckFleetRequirements reports whether the fleet has at least one worker
// and, when infra sets MinCores, at least that many cores. A nil infra (no
// infrastructure table in the project config) only requires one worker.
func CheckFleetRequirements(fleet Fleet, infra *config.Infrastructure) bool {
	if infra == nil {
		return fleet.WorkerCount > 0
	}
	if infra.MinCores > 0 && fleet.TotalCores < infra.MinCores {
		return false
	}
	return fleet.WorkerCount > 0
}

// Tick advances every active project's phases by one orchestration cycle.
func (e *Engine) Tick() error {
	projects, err := e.coord.Store().ListActiveProjects()
	if err != nil {
		return fmt.Errorf("project: tick: list active projects: %w", err)
	}
	workers, err := e.coord.Store().ListWorkers()
	if err != nil {
		return fmt.Errorf("project: tick: list workers: %w", err)
	}
	fleet := ComputeFleet(workers)

	for _, p := range projects {
		if p.Status != "active" {
			continue
		}
		if err := e.tickProject(p, fleet); err != nil {
			e.logger.Error("project tick failed", "project_id", p.ID, "slug", p.Slug, "error", err)
		}
	}
	return nil
}

func (e *Engine) tickProject(p store.Project, fleet Fleet) error {
	st := e.coord.Store()
	phases, err := st.ListPhases(p.ID)
	if err != nil {
		return fmt.Errorf("list phases: %w", err)
	}
	byName := make(map[string]store.Phase, len(phases))
	for _, ph := range phases {
		byName[ph.Name] = ph
	}

	// Step 1: advance active phases with attached jobs.
	for i := range phases {
		ph := &phases[i]
		if ph.Status != "active" || ph.SearchJobID == nil {
			continue
		}
		summary, err := st.JobSummaryFor(*ph.SearchJobID)
		if err != nil {
			return fmt.Errorf("job summary for phase %s: %w", ph.Name, err)
		}
		if err := st.UpdatePhaseTotals(ph.ID, summary.TotalTested, summary.TotalFound); err != nil {
			return fmt.Errorf("update phase totals %s: %w", ph.Name, err)
		}
		ph.TotalTested = summary.TotalTested
		ph.TotalFound = summary.TotalFound

		if phaseCompletionHolds(ph.CompletionCondition, summary, ph.TotalFound) {
			if err := st.SetPhaseStatus(ph.ID, "completed"); err != nil {
				return fmt.Errorf("complete phase %s: %w", ph.Name, err)
			}
			ph.Status = "completed"
			e.logger.Info("phase completed", "project_id", p.ID, "phase", ph.Name, "total_tested", ph.TotalTested, "total_found", ph.TotalFound)
		}
	}

	// Step 2: adaptive follow-up for phases that just completed with zero finds.
	for i := range phases {
		ph := phases[i]
		if ph.Status != "completed" || ph.TotalFound != 0 {
			continue
		}
		// Follow-ups are generated once per original phase; an -extend phase
		// that also comes up empty is not extended again.
		if strings.HasSuffix(ph.Name, "-extend") {
			continue
		}
		followName := ph.Name + "-extend"
		if _, exists := byName[followName]; exists {
			continue
		}
		rangeStart, rangeEnd, ok := rangeFromSearchParams(ph.SearchParams)
		if !ok {
			continue
		}
		// The phase's declared range is treated as inclusive: width counts rangeEnd itself,
		// and the follow-up starts immediately after it.
		width := rangeEnd - rangeStart + 1
		newStart := rangeEnd + 1
		newParams := cloneParams(ph.SearchParams)
		newParams["range_start"] = newStart
		newParams["range_end"] = newStart + width
		newPhase := store.Phase{
			ProjectID:           p.ID,
			Name:                followName,
			Order:               ph.Order + 1,
			Status:              "pending",
			SearchParams:        newParams,
			BlockSize:           ph.BlockSize,
			DependsOn:           []string{ph.Name},
			ActivationCondition: "previous_phase_found_zero",
			CompletionCondition: ph.CompletionCondition,
		}
		id, err := st.CreatePhase(newPhase)
		if err != nil {
			return fmt.Errorf("create follow-up phase %s: %w", followName, err)
		}
		newPhase.ID = id
		phases = append(phases, newPhase)
		byName[followName] = newPhase
		e.logger.Info("adaptive follow-up phase created", "project_id", p.ID, "phase", followName, "range_start", newParams["range_start"], "range_end", newParams["range_end"])
	}

	// Step 3: activate pending phases whose dependencies are satisfied.
	infra := decodeInfrastructure(p.Infrastructure)
	for i := range phases {
		ph := phases[i]
		if ph.Status != "pending" {
			continue
		}
		if !dependenciesSatisfied(ph, byName) {
			continue
		}
		if !activationHolds(ph.ActivationCondition, ph.DependsOn, byName) {
			continue
		}
		if !CheckFleetRequirements(fleet, infra) {
			e.logger.Info("fleet_insufficient", "project_id", p.ID, "phase", ph.Name)
			e.publish("fleet_insufficient", map[string]any{"project_id": p.ID, "phase": ph.Name})
			continue
		}
		rangeStart, rangeEnd, ok := rangeFromSearchParams(ph.SearchParams)
		if !ok {
			e.logger.Warn("phase missing range in search_params", "project_id", p.ID, "phase", ph.Name)
			continue
		}
		blockSize := ph.BlockSize
		if blockSize == 0 {
			blockSize = forms.AdaptiveBlockSize(rangeStart)
		}
		jobID, err := e.coord.CreateJob(p.Form, ph.SearchParams, rangeStart, rangeEnd, blockSize, "")
		if err != nil {
			return fmt.Errorf("create job for phase %s: %w", ph.Name, err)
		}
		if err := st.LinkPhaseJob(ph.ID, jobID); err != nil {
			return fmt.Errorf("link phase %s to job %d: %w", ph.Name, jobID, err)
		}
		e.logger.Info("phase activated", "project_id", p.ID, "phase", ph.Name, "job_id", jobID)
	}

	// Step 4: aggregate totals back to the project.
	var totalTested, totalFound int64
	allTerminal := true
	anyFailed := false
	refreshed, err := st.ListPhases(p.ID)
	if err != nil {
		return fmt.Errorf("re-list phases: %w", err)
	}
	for _, ph := range refreshed {
		totalTested += ph.TotalTested
		totalFound += ph.TotalFound
		switch ph.Status {
		case "completed", "skipped":
		case "failed":
			anyFailed = true
		default:
			allTerminal = false
		}
	}

	// Step 5: compute actual cost from the cost-observations view.
	coreHours, costUSD, err := e.computeCost(p)
	if err != nil {
		return fmt.Errorf("compute cost: %w", err)
	}
	if err := st.UpdateProjectTotals(p.ID, totalTested, totalFound, coreHours, costUSD); err != nil {
		return fmt.Errorf("update project totals: %w", err)
	}

	// Step 6: link best discovered prime for this form.
	if best, err := st.BestPrimeForForm(p.Form); err == nil && best != nil {
		if best.Digits > p.BestDigits {
			if err := st.SetProjectBestPrime(p.ID, best.ID, best.Digits); err != nil {
				return fmt.Errorf("set project best prime: %w", err)
			}
		}
		if rec, err := st.GetRecord(p.Form, "world"); err == nil && rec != nil && best.Digits > rec.OurBestDigits {
			if err := st.RecordBestPrime(p.Form, "world", best.ID, best.Digits); err != nil {
				return fmt.Errorf("record best prime: %w", err)
			}
		}
	}

	// Step 7: terminal rollup.
	if allTerminal && len(refreshed) > 0 {
		status := "completed"
		if anyFailed {
			status = "failed"
		}
		if err := st.SetProjectStatus(p.ID, status); err != nil {
			return fmt.Errorf("set project status %s: %w", status, err)
		}
		e.logger.Info("project terminal", "project_id", p.ID, "slug", p.Slug, "status", status)
		return nil
	}

	// Step 8: budget gate.
	maxCost, alertCost := budgetLimits(p.Budget)
	if maxCost > 0 && costUSD >= maxCost {
		if err := st.SetProjectStatus(p.ID, "paused"); err != nil {
			return fmt.Errorf("pause project on budget: %w", err)
		}
		e.logger.Warn("project paused: budget exceeded", "project_id", p.ID, "cost_usd", costUSD, "max_cost_usd", maxCost)
		e.publish("budget_exceeded", map[string]any{"project_id": p.ID, "cost_usd": costUSD, "max_cost_usd": maxCost})
	} else if alertCost > 0 && costUSD >= alertCost {
		e.logger.Warn("budget_alert", "project_id", p.ID, "cost_usd", costUSD, "alert_threshold_usd", alertCost)
		e.publish("budget_alert", map[string]any{"project_id": p.ID, "cost_usd": costUSD, "alert_threshold_usd": alertCost})
	}
	return nil
}

func (e *Engine) computeCost(p store.Project) (coreHours, costUSD float64, err error) {
	obs, err := e.coord.Store().CostObservationsFor(p.Form)
	if err != nil {
		return 0, 0, err
	}
	var totalSecs float64
	for _, o := range obs {
		totalSecs += o.Secs
	}
	coreHours = totalSecs / 3600
	_, rate := budgetRate(p.Budget)
	costUSD = coreHours * rate
	return coreHours, costUSD, nil
}

func phaseCompletionHolds(condition string, summary store.JobSummary, totalFound int64) bool {
	switch condition {
	case "first_prime_found":
		return totalFound > 0
	default: // all_blocks_done
		return summary.Available == 0 && summary.Claimed == 0 && (summary.Completed+summary.Failed) > 0
	}
}

func dependenciesSatisfied(ph store.Phase, byName map[string]store.Phase) bool {
	for _, dep := range ph.DependsOn {
		d, ok := byName[dep]
		if !ok || d.Status != "completed" {
			return false
		}
	}
	return true
}

func activationHolds(condition string, dependsOn []string, byName map[string]store.Phase) bool {
	switch condition {
	case "previous_phase_found_zero":
		return lastDependencyFoundZero(dependsOn, byName)
	case "previous_phase_found_prime":
		return !lastDependencyFoundZero(dependsOn, byName)
	default:
		return true
	}
}

func lastDependencyFoundZero(dependsOn []string, byName map[string]store.Phase) bool {
	if len(dependsOn) == 0 {
		return true
	}
	dep, ok := byName[dependsOn[len(dependsOn)-1]]
	if !ok {
		return false
	}
	return dep.TotalFound == 0
}

func rangeFromSearchParams(params map[string]any) (start, end uint64, ok bool) {
	s, sok := toUint64(params["range_start"])
	e, eok := toUint64(params["range_end"])
	if !sok || !eok {
		return 0, 0, false
	}
	return s, e, true
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		return uint64(x), true
	case int:
		return uint64(x), true
	case float64:
		return uint64(x), true
	case string:
		n, err := strconv.ParseUint(x, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func budgetLimits(budgetJSON string) (maxCost, alertCost float64) {
	b := decodeBudget(budgetJSON)
	return b.MaxCostUSD, b.CostAlertThresholdUSD
}

func budgetRate(budgetJSON string) (maxCost, ratePerCoreHour float64) {
	b := decodeBudget(budgetJSON)
	rate := b.CloudRateUSDPerCoreHour
	if rate <= 0 {
		rate = 0.05
	}
	return b.MaxCostUSD, rate
}

func decodeBudget(budgetJSON string) config.Budget {
	var b config.Budget
	if budgetJSON == "" {
		return b
	}
	_ = json.Unmarshal([]byte(budgetJSON), &b)
	return b
}

func decodeInfrastructure(infraJSON string) *config.Infrastructure {
	if infraJSON == "" {
		return nil
	}
	var infra config.Infrastructure
	if err := json.Unmarshal([]byte(infraJSON), &infra); err != nil {
		return nil
	}
	return &infra
}

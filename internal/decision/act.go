package decision

import (
	"fmt"
	"log/slog"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/forms"
	"github.com/darkreach/darkreach/internal/project"
	"github.com/darkreach/darkreach/internal/store"
)

// defaultAutoProjectRangeWidth is the initial search window for a generated
// project; operators resize it via the project's own TOML once it is
// active.
const defaultAutoProjectRangeWidth = 100_000

// Act executes every decision in order and appends one
// decision_audit row per decision. tickID correlates every row from the same tick.
func Act(coord *coordinator.Coordinator, projectEngine *project.Engine, tickID string, decisions []Decision, logger *slog.Logger) error {
	for seq, d := range decisions {
		if err := act(coord, projectEngine, d, logger); err != nil {
			logger.Error("decision act failed", "tick_id", tickID, "seq", seq, "type", d.Type, "form", d.Form, "error", err)
		}
		if err := coord.Store().InsertDecisionAudit(store.DecisionAuditEntry{
			TickID:       tickID,
			Seq:          seq,
			DecisionType: string(d.Type),
			Form:         d.Form,
			Action:       actionTaken(d),
			Reasoning:    d.Reasoning,
			Confidence:   d.Confidence,
			Params:       d.Params,
		}); err != nil {
			logger.Error("decision audit insert failed", "tick_id", tickID, "seq", seq, "error", err)
		}
	}
	return nil
}

func actionTaken(d Decision) string {
	switch d.Type {
	case DecisionCreateProject, DecisionPauseProject, DecisionVerifyResult:
		return "executed"
	default:
		return "logged"
	}
}

func act(coord *coordinator.Coordinator, projectEngine *project.Engine, d Decision, logger *slog.Logger) error {
	switch d.Type {
	case DecisionCreateProject:
		return actCreateProject(projectEngine, d, logger)
	case DecisionPauseProject:
		return actPauseProject(coord, d)
	case DecisionVerifyResult:
		return actVerifyResult(coord, d, logger)
	case DecisionExtendProject, DecisionAbandonProject, DecisionRebalanceFleet, DecisionRequestAgentIntel,
		DecisionNoAction:
		logger.Info("decision logged", "type", d.Type, "form", d.Form, "reasoning", d.Reasoning)
		return nil
	default:
		return fmt.Errorf("decision: act: unknown decision type %q", d.Type)
	}
}

// actCreateProject generates an auto-strategy project config for the form
// and activates it.
func actCreateProject(projectEngine *project.Engine, d Decision, logger *slog.Logger) error {
	if projectEngine == nil {
		return fmt.Errorf("decision: act: create project %s: no project engine wired", d.Form)
	}
	budget, _ := d.Params["budget"].(float64)
	pf := &config.ProjectFile{
		Project: config.ProjectMeta{
			Name:      fmt.Sprintf("auto-%s", d.Form),
			Objective: "survey",
			Form:      d.Form,
		},
		Target: config.Target{
			RangeStart: 1,
			RangeEnd:   defaultAutoProjectRangeWidth,
		},
		Strategy: config.Strategy{AutoStrategy: true},
		Budget:   &config.Budget{MaxCostUSD: budget},
	}
	projectID, err := projectEngine.Import(pf)
	if err != nil {
		return fmt.Errorf("decision: act: create project %s: %w", d.Form, err)
	}
	if err := projectEngine.Activate(projectID); err != nil {
		return fmt.Errorf("decision: act: activate project %d: %w", projectID, err)
	}
	logger.Info("auto project created", "form", d.Form, "project_id", projectID, "budget", budget)
	return nil
}

// actVerifyResult re-derives the form's best prime from its stored
// expression and re-runs the pipeline at a high round count, recording the
// verification tier achieved.
func actVerifyResult(coord *coordinator.Coordinator, d Decision, logger *slog.Logger) error {
	rec, err := coord.Store().BestPrimeForForm(d.Form)
	if err != nil {
		return fmt.Errorf("decision: act: verify %s: %w", d.Form, err)
	}
	if rec == nil {
		return nil
	}
	tier, digits, err := forms.Verify(rec.Form, rec.Expression, verifyMRRounds)
	if err != nil {
		return fmt.Errorf("decision: act: verify %s %q: %w", d.Form, rec.Expression, err)
	}
	if err := coord.Store().SetVerification(rec.ID, tier > forms.TierUnverified, tier); err != nil {
		return err
	}
	logger.Info("prime verified", "form", rec.Form, "expression", rec.Expression, "tier", tier, "digits", digits)
	return nil
}

// verifyMRRounds is the elevated round count used for re-verification, not
// the engines' default search-time rounds.
const verifyMRRounds = 40

// actPauseProject marks the stalled job's job paused.
func actPauseProject(coord *coordinator.Coordinator, d Decision) error {
	if d.JobID == 0 {
		return nil
	}
	return coord.Store().SetJobStatus(d.JobID, "paused")
}

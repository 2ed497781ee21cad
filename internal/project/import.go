package project

import (
	"encoding/json"
	"fmt"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/forms"
	"github.com/darkreach/darkreach/internal/store"
)

// Import creates a project and its phases from a validated per-project
// TOML file. The project is created in
// status "draft"; callers (typically the decision engine's ACT step, or an
// operator) set it active once ready to run.
func (e *Engine) Import(pf *config.ProjectFile) (int64, error) {
	target := map[string]any{
		"target_digits": pf.Target.TargetDigits,
		"range_start":   pf.Target.RangeStart,
		"range_end":     pf.Target.RangeEnd,
	}
	var competitive, infrastructure, budget string
	var err error
	if pf.Competitive != nil {
		if competitive, err = marshalOptional(pf.Competitive); err != nil {
			return 0, fmt.Errorf("project: import %s: marshal competitive: %w", pf.Project.Name, err)
		}
	}
	if pf.Infrastructure != nil {
		if infrastructure, err = marshalOptional(pf.Infrastructure); err != nil {
			return 0, fmt.Errorf("project: import %s: marshal infrastructure: %w", pf.Project.Name, err)
		}
	}
	if pf.Budget != nil {
		if budget, err = marshalOptional(pf.Budget); err != nil {
			return 0, fmt.Errorf("project: import %s: marshal budget: %w", pf.Project.Name, err)
		}
	}

	slug := slugify(pf.Project.Name)
	projectID, err := e.coord.Store().CreateProject(store.Project{
		Slug:           slug,
		Name:           pf.Project.Name,
		Description:    pf.Project.Description,
		Objective:      pf.Project.Objective,
		Form:           pf.Project.Form,
		Status:         "draft",
		Target:         target,
		Competitive:    competitive,
		Infrastructure: infrastructure,
		Budget:         budget,
	})
	if err != nil {
		return 0, fmt.Errorf("project: import %s: create project: %w", pf.Project.Name, err)
	}

	phases := pf.Strategy.Phases
	if pf.Strategy.AutoStrategy && len(phases) == 0 {
		phases = autoPhases(pf.Project.Form, pf.Project.Objective, pf.Target.RangeStart, pf.Target.RangeEnd)
	}

	for i, ph := range phases {
		searchParams := make(map[string]any, len(ph.SearchParams)+2)
		for k, v := range ph.SearchParams {
			searchParams[k] = v
		}
		_, hasStart := searchParams["range_start"]
		_, hasEnd := searchParams["range_end"]
		if !hasStart {
			searchParams["range_start"] = pf.Target.RangeStart
		}
		if !hasEnd {
			searchParams["range_end"] = pf.Target.RangeEnd
		}
		blockSize := ph.BlockSize
		if blockSize == 0 {
			blockSize = forms.AdaptiveBlockSize(pf.Target.RangeStart)
		}
		completion := ph.Completion
		if completion == "" {
			completion = "all_blocks_done"
		}
		if _, err := e.coord.Store().CreatePhase(store.Phase{
			ProjectID:           projectID,
			Name:                ph.Name,
			Order:               i,
			Status:              "pending",
			SearchParams:        searchParams,
			BlockSize:           blockSize,
			DependsOn:           ph.DependsOn,
			ActivationCondition: ph.ActivationCondition,
			CompletionCondition: completion,
		}); err != nil {
			return 0, fmt.Errorf("project: import %s: create phase %s: %w", pf.Project.Name, ph.Name, err)
		}
	}

	if pf.Competitive != nil {
		if err := e.coord.Store().UpsertRecord(store.Record{
			Form:       pf.Project.Form,
			Category:   "world",
			Expression: pf.Competitive.CurrentRecordExpression,
			Digits:     pf.Competitive.CurrentRecordDigits,
			Holder:     pf.Competitive.CurrentRecordHolder,
			Source:     "project_config",
			SourceURL:  firstOrEmpty(pf.Competitive.ReferenceURLs),
		}); err != nil {
			e.logger.Warn("failed to seed record row from project config", "project", pf.Project.Name, "error", err)
		}
	}

	e.logger.Info("project imported", "project_id", projectID, "slug", slug, "form", pf.Project.Form, "phases", len(phases))
	return projectID, nil
}

// Activate transitions a draft project to active, letting the next tick
// begin activating its eligible phases.
func (e *Engine) Activate(projectID int64) error {
	return e.coord.Store().SetProjectStatus(projectID, "active")
}

// autoPhases generates the default phase set for auto_strategy projects:
// a single sweep for survey/custom/verification objectives, or a sweep
// followed by an explicit extend phase for record-hunting objectives, where the extend phase activates only if
// the sweep found nothing.
func autoPhases(form, objective string, rangeStart, rangeEnd uint64) []config.PhaseConfig {
	sweep := config.PhaseConfig{
		Name: "sweep",
		SearchParams: map[string]any{
			"range_start": rangeStart,
			"range_end":   rangeEnd,
		},
		Completion: "all_blocks_done",
	}
	if objective != "record" {
		return []config.PhaseConfig{sweep}
	}
	width := rangeEnd - rangeStart + 1
	newStart := rangeEnd + 1
	extend := config.PhaseConfig{
		Name: "extend",
		SearchParams: map[string]any{
			"range_start": newStart,
			"range_end":   newStart + width,
		},
		DependsOn:           []string{"sweep"},
		ActivationCondition: "previous_phase_found_zero",
		Completion:          "all_blocks_done",
	}
	return []config.PhaseConfig{sweep, extend}
}

func marshalOptional(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}

func slugify(name string) string {
	out := make([]rune, 0, len(name))
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
			lastDash = false
		default:
			if !lastDash && len(out) > 0 {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}

package decision

import (
	"sort"

	"github.com/darkreach/darkreach/internal/config"
)

// FormScore is one form's composed score and component breakdown.
type FormScore struct {
	Form       string
	Score      float64
	Components map[string]float64
}

// DriftReport captures what changed since the previous tick's snapshot.
type DriftReport struct {
	NewWorkers     int // fleet grew by this many workers since the last tick
	LostWorkers    int
	NewDiscoveries []string
	StalledJobs    []StalledJobInfo
	BudgetVelocity float64 // USD/hour since the previous snapshot
}

// StalledJobInfo names a job the drift report flags as stalled.
type StalledJobInfo struct {
	JobID int64
	Form  string
}

// Orient scores every form in config.ValidForms and
// returns them sorted by descending score. It is a pure function of the
// snapshot and configuration.
func Orient(snap WorldSnapshot, cfg *config.Config) []FormScore {
	weights := cfg.OODA.ScoringWeights
	if len(weights) == 0 {
		weights = config.Default().OODA.ScoringWeights
	}
	excluded := toSet(cfg.OODA.ExcludedForms)
	preferred := toSet(cfg.OODA.PreferredForms)

	recordIndex := buildRecordIndex(snap.Records)

	scores := make([]FormScore, 0, len(config.ValidForms))
	for form := range config.ValidForms {
		if excluded[form] {
			scores = append(scores, FormScore{Form: form, Score: 0, Components: map[string]float64{}})
			continue
		}
		components := map[string]float64{
			"record_gap":          recordGapScore(form, recordIndex),
			"yield_rate":          yieldRateScore(snap.YieldRates[form]),
			"cost_efficiency":     costEfficiencyScore(form, snap.CostCalibrations[form], cfg),
			"opportunity_density": opportunityDensityScore(form, snap.YieldRates[form], cfg),
			"fleet_fit":           fleetFitScore(snap.Fleet, form, cfg),
			"momentum":            momentumScore(form, snap.RecentDiscoveries),
			"competition":         0.5,
		}
		var composed float64
		for name, weight := range weights {
			composed += weight * components[name]
		}
		if preferred[form] {
			composed *= 1.5
		}
		if composed > 1 {
			composed = 1
		}
		scores = append(scores, FormScore{Form: form, Score: composed, Components: components})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Form < scores[j].Form
	})
	return scores
}

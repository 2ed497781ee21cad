package decision

import (
	"math"
	"time"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/store"
)

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}

// buildRecordIndex keys records by form, preferring the "world" category
// when a form has more than one tracked record row.
func buildRecordIndex(records []store.Record) map[string]store.Record {
	idx := make(map[string]store.Record, len(records))
	for _, r := range records {
		if _, ok := idx[r.Form]; !ok || r.Category == "world" {
			idx[r.Form] = r
		}
	}
	return idx
}

// recordGapScore is 1 when no record is known for the form, otherwise
// 1 - min(our_best/record, 1).
func recordGapScore(form string, records map[string]store.Record) float64 {
	r, ok := records[form]
	if !ok || r.Digits <= 0 {
		return 1
	}
	ratio := float64(r.OurBestDigits) / float64(r.Digits)
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// yieldRateScore log-normalizes historical found/tested into [0,1]. A form
// with no testing yet scores a neutral 0.5, so one with zero finds under
// heavy testing (score 0) does not score identically to one never searched.
func yieldRateScore(y store.FormYield) float64 {
	if y.TotalTested <= 0 {
		return 0.5 // no data yet; neutral rather than punitive
	}
	rate := float64(y.TotalFound) / float64(y.TotalTested)
	return clamp01(math.Log1p(rate*1000) / math.Log1p(1000))
}

// costEfficiencyScore log-normalizes the fitted cost model's implied yield
// per second at 1000 digits. Forms without a calibration yet fall back to
// the configured defaults.
func costEfficiencyScore(form string, cal store.CostCalibration, cfg *config.Config) float64 {
	a, b := cal.CoeffA, cal.CoeffB
	if a <= 0 {
		if def, ok := cfg.CostModel[form]; ok && def.CoeffA > 0 {
			a, b = def.CoeffA, def.CoeffB
		} else {
			a, b = 1, 2.5 // fallback shape shared by every form
		}
	}
	secsAt1000 := a * math.Pow(1, b) // (1000/1000)^b == 1
	if secsAt1000 <= 0 {
		return 0.5
	}
	yieldPerSec := 1 / secsAt1000
	return clamp01(math.Log1p(yieldPerSec) / math.Log1p(1000))
}

// opportunityDensityScore is the fraction of a form's configured searchable
// range not yet covered.
func opportunityDensityScore(form string, y store.FormYield, cfg *config.Config) float64 {
	limits := cfg.Forms[form]
	if limits.SearchableRange == 0 {
		return 0.5
	}
	covered := float64(y.MaxRangeEnd) / float64(limits.SearchableRange)
	if covered > 1 {
		covered = 1
	}
	return 1 - covered
}

// fleetFitScore is min(1, total_cores/min_cores_for_form).
func fleetFitScore(fleet Fleet, form string, cfg *config.Config) float64 {
	limits := cfg.Forms[form]
	if limits.MinCores <= 0 {
		return 1
	}
	return clamp01(float64(fleet.TotalCores) / float64(limits.MinCores))
}

// momentumScore is min(1, recent_form_discoveries/5) over the snapshot's
// recent-discoveries window.
func momentumScore(form string, recent []store.PrimeRecord) float64 {
	var count int
	for _, r := range recent {
		if r.Form == form {
			count++
		}
	}
	return clamp01(float64(count) / 5)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ComputeDrift compares the current snapshot against the previous one to
// build a DriftReport. prev may be the zero value on the engine's first
// tick.
func ComputeDrift(prev, cur WorldSnapshot, stalled []store.StalledJob) DriftReport {
	var report DriftReport

	// The snapshot carries only the fleet aggregate, so new/lost worker
	// detection is a count delta; ORIENT needs rebalance signals, not
	// per-worker bookkeeping.
	if cur.Fleet.WorkerCount > prev.Fleet.WorkerCount {
		report.NewWorkers = cur.Fleet.WorkerCount - prev.Fleet.WorkerCount
	} else if cur.Fleet.WorkerCount < prev.Fleet.WorkerCount {
		report.LostWorkers = prev.Fleet.WorkerCount - cur.Fleet.WorkerCount
	}

	prevDiscoveries := make(map[int64]bool, len(prev.RecentDiscoveries))
	for _, d := range prev.RecentDiscoveries {
		prevDiscoveries[d.ID] = true
	}
	for _, d := range cur.RecentDiscoveries {
		if !prevDiscoveries[d.ID] {
			report.NewDiscoveries = append(report.NewDiscoveries, d.Expression)
		}
	}

	for _, j := range stalled {
		report.StalledJobs = append(report.StalledJobs, StalledJobInfo{JobID: j.JobID, Form: j.SearchType})
	}

	if !prev.Timestamp.IsZero() {
		elapsedHours := cur.Timestamp.Sub(prev.Timestamp).Hours()
		if elapsedHours > 0 {
			report.BudgetVelocity = (cur.MonthlyCostUSD - prev.MonthlyCostUSD) / elapsedHours
		}
	}
	return report
}

// StalledThreshold is the running-with-zero-tested window after which the
// drift report flags a job as stalled.
const StalledThreshold = 30 * time.Minute

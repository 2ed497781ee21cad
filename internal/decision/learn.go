package decision

import (
	"math"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/store"
)

// FitResult is the output of fitPowerLaw.
type FitResult struct {
	CoeffA float64
	CoeffB float64
	MAPE   float64
}

// fitPowerLaw fits secs = a * (digits/1000)^b by ordinary least squares on
// log(secs) vs log(digits/1000). The standard library provides everything this
// needs (log, a 2x2 normal-equations solve); no ecosystem regression
// library appears anywhere in the retrieved example pack, so this stays on
// math rather than reaching for ungrounded machinery.
func fitPowerLaw(obs []store.CostObservation) (FitResult, bool) {
	n := float64(len(obs))
	if n < 2 {
		return FitResult{}, false
	}

	var sumX, sumY, sumXX, sumXY float64
	xs := make([]float64, len(obs))
	for i, o := range obs {
		if o.Digits <= 0 || o.Secs <= 0 {
			return FitResult{}, false
		}
		x := math.Log(float64(o.Digits) / 1000)
		y := math.Log(o.Secs)
		xs[i] = x
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return FitResult{}, false
	}
	b := (n*sumXY - sumX*sumY) / denom
	lnA := (sumY - b*sumX) / n
	a := math.Exp(lnA)

	var apeSum float64
	for i, o := range obs {
		predicted := a * math.Exp(b*xs[i])
		apeSum += math.Abs(predicted-o.Secs) / o.Secs
	}
	mape := apeSum / n

	return FitResult{CoeffA: a, CoeffB: b, MAPE: mape}, true
}

// Learn refits the cost model for every form with enough fresh observations.
// Callers gate the call frequency themselves (at most
// once per learn_interval_secs); Learn itself is stateless besides the
// store reads/writes it performs.
func Learn(st *store.Store, cfg *config.Config) (int, error) {
	forms, err := st.DistinctCostObservationForms()
	if err != nil {
		return 0, err
	}
	minSamples := cfg.OODA.MinCalibrationSamples
	if minSamples <= 0 {
		minSamples = 5
	}
	maxMAPE := cfg.OODA.MaxCalibrationMAPE
	if maxMAPE <= 0 {
		maxMAPE = 0.25
	}

	updated := 0
	for _, form := range forms {
		obs, err := st.CostObservationsFor(form)
		if err != nil {
			return updated, err
		}
		if len(obs) < minSamples {
			continue
		}
		fit, ok := fitPowerLaw(obs)
		if !ok || fit.MAPE > maxMAPE {
			continue
		}
		acceleratorDivisor := 1.0
		if def, ok := cfg.CostModel[form]; ok && def.AcceleratorDivisor > 0 {
			acceleratorDivisor = def.AcceleratorDivisor
		}
		if err := st.UpsertCostCalibration(store.CostCalibration{
			Form:               form,
			CoeffA:             fit.CoeffA,
			CoeffB:             fit.CoeffB,
			SampleCount:        len(obs),
			AvgErrorPct:        fit.MAPE * 100,
			AcceleratorDivisor: acceleratorDivisor,
		}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

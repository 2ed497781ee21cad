package decision

import (
	"math"
	"testing"

	"github.com/darkreach/darkreach/internal/store"
)

// TestFitPowerLawRecoversSyntheticCoefficients: given observations
// generated from an exact power law, the fit recovers (a, b) to within 1%
// and reports MAPE under 1%.
func TestFitPowerLawRecoversSyntheticCoefficients(t *testing.T) {
	const wantA, wantB = 2.5, 1.8
	digitsSamples := []int64{200, 500, 1000, 1500, 2000, 3000, 5000, 8000}

	obs := make([]store.CostObservation, 0, len(digitsSamples))
	for _, d := range digitsSamples {
		x := float64(d) / 1000
		secs := wantA * math.Pow(x, wantB)
		obs = append(obs, store.CostObservation{Form: "mersenne", Digits: d, Secs: secs})
	}

	fit, ok := fitPowerLaw(obs)
	if !ok {
		t.Fatalf("fitPowerLaw rejected exact power-law data")
	}

	if errA := math.Abs(fit.CoeffA-wantA) / wantA; errA > 0.01 {
		t.Fatalf("coeff a off by %.4f%%: got %.6f want %.6f", errA*100, fit.CoeffA, wantA)
	}
	if errB := math.Abs(fit.CoeffB-wantB) / wantB; errB > 0.01 {
		t.Fatalf("coeff b off by %.4f%%: got %.6f want %.6f", errB*100, fit.CoeffB, wantB)
	}
	if fit.MAPE > 0.01 {
		t.Fatalf("expected MAPE < 1%% on exact power-law data, got %.6f", fit.MAPE)
	}
}

// TestFitPowerLawRejectsSparseData covers the n < 2 guard: a single
// observation cannot determine two coefficients.
func TestFitPowerLawRejectsSparseData(t *testing.T) {
	_, ok := fitPowerLaw([]store.CostObservation{{Form: "wagstaff", Digits: 1000, Secs: 10}})
	if ok {
		t.Fatalf("expected fitPowerLaw to reject a single observation")
	}
}

// TestFitPowerLawRejectsInvalidObservations covers the non-positive
// digits/secs guard (log of a non-positive number is undefined).
func TestFitPowerLawRejectsInvalidObservations(t *testing.T) {
	obs := []store.CostObservation{
		{Form: "twin", Digits: 1000, Secs: 10},
		{Form: "twin", Digits: 0, Secs: 5},
	}
	if _, ok := fitPowerLaw(obs); ok {
		t.Fatalf("expected fitPowerLaw to reject a zero-digits observation")
	}
}

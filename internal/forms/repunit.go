package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

func repunitBase(extra map[string]any) uint64 {
	if v, ok := extra["base"]; ok {
		if b := toUint64(v); b >= 2 {
			return b
		}
	}
	return 10
}

// RepunitEngine searches R(b,n) = (b^n-1)/(b-1) for prime exponents n. For
// sieve prime q: if q|(b-1), q divides R(b,n) iff q|n, so among prime
// exponents only n=q is eliminated; otherwise only n=ord_q(b) is
// eliminated, and only when that order is itself prime. No
// deterministic kernel is assigned to this form, so confirmed candidates
// are reported probabilistic.
type RepunitEngine struct{}

func (RepunitEngine) Form() string { return "repunit" }

func (e RepunitEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "repunit"
	base := repunitBase(p.ExtraParams)
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	exponents := bigmath.GeneratePrimes(p.RangeEnd)
	sieve := bigmath.GeneratePrimes(p.SieveLimit)

	surv := newSurvivorSet(start, p.RangeEnd)
	for _, q := range sieve {
		if (base-1)%q == 0 {
			markSingle(start, p.RangeEnd, q, surv.Mark)
			continue
		}
		ord := bigmath.MultiplicativeOrder(base%q, q)
		if ord == 0 || !isSmallPrime(ord) {
			continue
		}
		markSingle(start, p.RangeEnd, ord, surv.Mark)
	}

	// R(b,n) <= sieve_limit means the candidate may itself be a sieve
	// prime; such exponents bypass the survivor map.
	sieveMinExp := sieveMinNFor(base, p.SieveLimit*(base-1))

	var tested, found uint64
	lastCheckpoint := time.Now()
	baseMinus1 := new(big.Int).SetUint64(base - 1)

	for _, n := range exponents {
		if n < start {
			continue
		}
		if n >= p.RangeEnd {
			break
		}
		if n < sieveMinExp || surv.Alive(n) {
			bn := bigmath.PowBig(new(big.Int).SetUint64(base), n)
			numerator := subOne(bn)
			candidate := new(big.Int).Div(numerator, baseMinus1)

			if !trialDivide(candidate, sieve) {
				out := viaMillerRabin(candidate, p.MRRounds)
				if out.Prime {
					found++
					publishPrimeFound(p, PrimeReport{
						Form:        form,
						Expression:  fmt.Sprintf("R(%d, %d)", base, n),
						Digits:      digitCount(candidate),
						ProofMethod: out.Method,
					})
				}
			}
		}
		tested++

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found)
		p.Progress.SetCurrent(fmt.Sprintf("n=%d", n))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			saveCheckpoint(p.CheckpointPath, form, n)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, form, p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

func isSmallPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	for d := uint64(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

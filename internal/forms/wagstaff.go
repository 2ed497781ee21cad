package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// WagstaffEngine searches (2^p+1)/3 for prime exponents p. For sieve prime
// q whose multiplicative order of 2 satisfies ord===2 (mod 4), p===ord/2
// (mod ord) is eliminated. No deterministic kernel is
// assigned to this form in the proof-emission table, so confirmed
// candidates are reported probabilistic.
type WagstaffEngine struct{}

func (WagstaffEngine) Form() string { return "wagstaff" }

func (e WagstaffEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "wagstaff"
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	exponents := bigmath.GeneratePrimes(p.RangeEnd)
	sieve := bigmath.GeneratePrimes(p.SieveLimit)

	surv := newSurvivorSet(start, p.RangeEnd)
	for _, q := range sieve {
		if q == 2 || q == 3 {
			continue
		}
		ord := bigmath.MultiplicativeOrder(2, q)
		if ord == 0 || ord%4 != 2 {
			continue
		}
		markProgression(start, p.RangeEnd, ord/2, ord, surv.Mark)
	}
	// (2^p+1)/3 <= sieve_limit means the candidate may itself be a sieve
	// prime; such exponents bypass the survivor map.
	sieveMinExp := sieveMinNFor(2, 3*p.SieveLimit)

	var tested, found uint64
	lastCheckpoint := time.Now()
	three := big.NewInt(3)

	for _, exp := range exponents {
		if exp < start {
			continue
		}
		if exp >= p.RangeEnd {
			break
		}
		if exp < sieveMinExp || surv.Alive(exp) {
			twoP := bigmath.PowBig(big2local, exp)
			numerator := addOne(twoP)
			candidate := new(big.Int).Div(numerator, three)

			if !trialDivide(candidate, sieve) {
				out := viaMillerRabin(candidate, p.MRRounds)
				if out.Prime {
					found++
					publishPrimeFound(p, PrimeReport{
						Form:        form,
						Expression:  fmt.Sprintf("(2^%d + 1)/3", exp),
						Digits:      digitCount(candidate),
						ProofMethod: out.Method,
					})
				}
			}
		}
		tested++

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found)
		p.Progress.SetCurrent(fmt.Sprintf("p=%d", exp))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			saveCheckpoint(p.CheckpointPath, form, exp)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, form, p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

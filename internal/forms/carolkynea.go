package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

func carolKyneaSign(extra map[string]any) string {
	if v, ok := extra["sign"].(string); ok && v == "kynea" {
		return "kynea"
	}
	return "carol"
}

// CarolKyneaEngine searches (2^n-1)^2-2 (Carol) or (2^n+1)^2-2 (Kynea). The
// sieve tracks g2=2^n, g4=4^n mod q; Carol is eliminated when
// g4===2*g2+1, Kynea when g4+2*g2===1. Both forms reduce
// to k*2^(n+1)-1 with k=2^(n-1)-+1, so the deterministic proof is LLR over
// that decomposition.
type CarolKyneaEngine struct{}

func (CarolKyneaEngine) Form() string { return "carol_kynea" }

func (e CarolKyneaEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	sign := carolKyneaSign(p.ExtraParams)
	form := "carol_kynea"
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start < 2 {
		start = 2
	}
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)
	surv := newSurvivorSet(start, p.RangeEnd)
	for _, q := range sieve {
		if q == 2 {
			continue
		}
		g2 := bigmath.PowMod(2, start, q)
		g4 := bigmath.PowMod(4, start, q)
		for n := start; n < p.RangeEnd; n++ {
			eliminated := false
			if sign == "carol" {
				eliminated = g4 == (2*g2+1)%q
			} else {
				eliminated = (g4+2*g2)%q == 1
			}
			if eliminated {
				surv.Mark(n)
			}
			g2 = modMul(g2, 2, q)
			g4 = modMul(g4, 4, q)
		}
	}

	sieveMinN := sieveMinNFor(2, p.SieveLimit)
	var tested, found uint64
	lastCheckpoint := time.Now()

	for n := start; n < p.RangeEnd; n++ {
		if n < sieveMinN || surv.Alive(n) {
			twoN := bigmath.PowBig(big2local, n)
			var base *big.Int
			var exprForm string
			if sign == "carol" {
				base = subOne(twoN)
				exprForm = "(2^%d - 1)^2 - 2"
			} else {
				base = addOne(twoN)
				exprForm = "(2^%d + 1)^2 - 2"
			}
			candidate := new(big.Int).Mul(base, base)
			candidate.Sub(candidate, big2local)

			if candidate.Sign() > 0 && !trialDivide(candidate, sieve) {
				halfTwoNMinus1 := bigmath.PowBig(big2local, n-1)
				var k *big.Int
				if sign == "carol" {
					k = subOne(halfTwoNMinus1)
				} else {
					k = addOne(halfTwoNMinus1)
				}
				out := viaLLRBig(candidate, k, n+1, p.MRRounds)
				if out.Prime {
					found++
					publishPrimeFound(p, PrimeReport{
						Form:        form,
						Expression:  fmt.Sprintf(exprForm, n),
						Digits:      digitCount(candidate),
						ProofMethod: out.Method,
					})
				}
			}
			tested++
		}

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

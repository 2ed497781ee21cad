package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// cullenWoodallSign selects which member of the pair a job searches;
// search_params.sign = "cullen" (default) or "woodall".
func cullenWoodallSign(extra map[string]any) string {
	if v, ok := extra["sign"].(string); ok && v == "woodall" {
		return "woodall"
	}
	return "cullen"
}

// CullenWoodallEngine searches n*2^n+-1. The sieve maintains, per prime q,
// the recurrence g<-2g, f<-2f+g (mod q) tracking 2^n and n*2^n
// simultaneously; n is eliminated for Cullen when f===q-1, for Woodall when
// f===1.
type CullenWoodallEngine struct{}

func (CullenWoodallEngine) Form() string { return "cullen_woodall" }

func (e CullenWoodallEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	sign := cullenWoodallSign(p.ExtraParams)
	form := "cullen_woodall"
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start < 1 {
		start = 1
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
		g := bigmath.PowMod(2, start, q)
		f := modMul(start%q, g, q)
		for n := start; n < p.RangeEnd; n++ {
			target := uint64(1)
			if sign == "cullen" {
				target = q - 1
			}
			if f == target {
				surv.Mark(n)
			}
			g = modMul(g, 2, q)
			f = (modMul(f, 2, q) + g) % q
		}
	}

	sieveMinN := sieveMinNFor(2, p.SieveLimit)
	var tested, found uint64
	lastCheckpoint := time.Now()

	for n := start; n < p.RangeEnd; n++ {
		if n < sieveMinN || surv.Alive(n) {
			nBig := new(big.Int).SetUint64(n)
			twoN := bigmath.PowBig(big2local, n)
			val := bigmath.MulBig(nBig, twoN)

			var candidate *big.Int
			var exprSign string
			if sign == "cullen" {
				candidate = addOne(val)
				exprSign = "+"
			} else {
				candidate = subOne(val)
				exprSign = "-"
			}
			if candidate.Sign() > 0 && !trialDivide(candidate, sieve) {
				var out testOutcome
				if sign == "cullen" {
					out = viaProth(candidate, nBig, n, p.MRRounds)
				} else {
					m, e := oddPart(n)
					out = viaLLR(candidate, m, n+e, p.MRRounds)
				}
				if out.Prime {
					found++
					publishPrimeFound(p, PrimeReport{
						Form:        form,
						Expression:  fmt.Sprintf("%d*2^%d %s 1", n, n, exprSign),
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

var big2local = big.NewInt(2)

func modMul(a, b, m uint64) uint64 {
	return new(big.Int).Mod(new(big.Int).Mul(
		new(big.Int).SetUint64(a), new(big.Int).SetUint64(b)), new(big.Int).SetUint64(m)).Uint64()
}

// oddPart returns m (odd) and e such that n = m*2^e.
func oddPart(n uint64) (m, e uint64) {
	m = n
	for m%2 == 0 && m > 0 {
		m /= 2
		e++
	}
	return m, e
}

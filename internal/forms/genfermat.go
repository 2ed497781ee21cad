package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

func genFermatExponent(extra map[string]any) uint64 {
	if v, ok := extra["n"]; ok {
		if n := toUint64(v); n > 0 {
			return n
		}
	}
	return 1
}

// GenFermatEngine searches b^(2^n)+1 over even bases b, for a fixed
// exponent n carried in search_params (the inverse of every other engine's
// range axis: here the range is over the base, not the exponent). The
// sieve marks b with b^e === q-1 (mod q), e = 2^n mod (q-1).
type GenFermatEngine struct{}

func (GenFermatEngine) Form() string { return "gen_fermat" }

func (e GenFermatEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "gen_fermat"
	n := genFermatExponent(p.ExtraParams)
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start%2 != 0 {
		start++
	}
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)
	expVal := uint64(1) << n // 2^n; n is small in practice (generalized Fermat degree)

	var tested, found uint64
	lastCheckpoint := time.Now()

	for b := start; b < p.RangeEnd; b += 2 {
		eliminated := false
		// b^(2^n) <= sieve_limit means the candidate may itself be a sieve
		// prime; such bases bypass the survivor check.
		if powExceeds(b, expVal, p.SieveLimit) {
			for _, q := range sieve {
				if q <= 2 {
					continue
				}
				e := bigmath.PowMod(2, n, q-1)
				if bigmath.PowMod(b%q, e, q) == q-1 {
					eliminated = true
					break
				}
			}
		}

		if !eliminated {
			bBig := new(big.Int).SetUint64(b)
			val := bigmath.PowBig(bBig, expVal)
			candidate := addOne(val)

			if !trialDivide(candidate, sieve) {
				v2, odd := twoAdicSplit(b)
				deterministic := (uint64(1) << v2) > odd
				var out testOutcome
				if deterministic {
					out = viaPepin(candidate, p.MRRounds)
				} else {
					out = viaMillerRabin(candidate, p.MRRounds)
				}
				if out.Prime {
					found++
					publishPrimeFound(p, PrimeReport{
						Form:        form,
						Expression:  fmt.Sprintf("%d^(2^%d) + 1", b, n),
						Digits:      digitCount(candidate),
						ProofMethod: out.Method,
					})
				}
			}
		}
		tested++

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found)
		p.Progress.SetCurrent(fmt.Sprintf("b=%d", b))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			saveCheckpoint(p.CheckpointPath, form, b)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, form, p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

// powExceeds reports whether base^exp > limit without overflowing.
func powExceeds(base, exp, limit uint64) bool {
	if base < 2 {
		return false
	}
	v := uint64(1)
	for i := uint64(0); i < exp; i++ {
		if v > limit/base {
			return true
		}
		v *= base
	}
	return v > limit
}

// twoAdicSplit returns v2 = nu_2(b) and odd = b / 2^v2.
func twoAdicSplit(b uint64) (v2, odd uint64) {
	odd = b
	for odd%2 == 0 && odd > 0 {
		odd /= 2
		v2++
	}
	return v2, odd
}

package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// FactorialEngine searches n!+-1 over a range of n. There is no modular
// sieve for this form: n! grows too fast for a fixed
// sieve limit to eliminate candidates usefully, so every n is small-factor
// trial-divided then run through the full pipeline.
type FactorialEngine struct{}

func (FactorialEngine) Form() string { return "factorial" }

func (FactorialEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	start := resumeStart(p.CheckpointPath, "factorial", p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)

	var tested, found uint64
	fact := bigmath.FactorialBig(start)
	lastCheckpoint := time.Now()

	for n := start; n < p.RangeEnd; n++ {
		if n > start {
			fact = bigmath.MulBig(fact, new(big.Int).SetUint64(n))
		}

		factors := bigmath.GeneratePrimes(n)

		plus := new(big.Int).Add(fact, big1)
		if !trialDivide(plus, sieve) {
			if out := viaPocklington(plus, factors, p.MRRounds); out.Prime {
				found++
				publishPrimeFound(p, PrimeReport{
					Form:       "factorial",
					Expression: fmt.Sprintf("%d! + 1", n),
					Digits:     digitCount(plus),
					ProofMethod: out.Method,
				})
			}
		}
		tested++

		if n >= 1 {
			minus := new(big.Int).Sub(fact, big1)
			if minus.Sign() > 0 && !trialDivide(minus, sieve) {
				if out := viaMorrison(minus, factors, p.MRRounds); out.Prime {
					found++
					publishPrimeFound(p, PrimeReport{
						Form:       "factorial",
						Expression: fmt.Sprintf("%d! - 1", n),
						Digits:     digitCount(minus),
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
			saveCheckpoint(p.CheckpointPath, "factorial", n)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, "factorial", p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

var big1 = big.NewInt(1)

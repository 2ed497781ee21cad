package forms

import (
	"context"
	"fmt"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// PrimorialEngine searches p#+-1 over a range of primes p. The sieve tracks
// p# mod q for every sieve prime q>p: p#+1 is composite when p#===q-1
// (mod q), p#-1 is composite when p#===1 (mod q).
type PrimorialEngine struct{}

func (PrimorialEngine) Form() string { return "primorial" }

func (PrimorialEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	start := resumeStart(p.CheckpointPath, "primorial", p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	primes := bigmath.GeneratePrimes(p.RangeEnd)
	sieve := bigmath.GeneratePrimes(p.SieveLimit)

	var tested, found uint64
	prim := bigmath.PrimorialBig(primes, start)
	lastCheckpoint := time.Now()

	for _, prime := range primes {
		if prime < start {
			continue
		}
		if prime >= p.RangeEnd {
			break
		}
		if prime != start {
			prim = bigmath.MulBig(prim, bigFromUint64(prime))
		}

		factors := make([]uint64, 0, len(primes))
		for _, q := range primes {
			if q > prime {
				break
			}
			factors = append(factors, q)
		}

		plusEliminated := false
		minusEliminated := false
		// p# <= sieve_limit means p#+-1 may itself be a sieve prime; such
		// primorials bypass the modular elimination.
		if prim.Cmp(bigFromUint64(p.SieveLimit)) > 0 {
			for _, q := range sieve {
				if q <= prime {
					continue
				}
				qb := bigFromUint64(q)
				rem := modBigMod(prim, qb)
				if rem == q-1 {
					plusEliminated = true
				}
				if rem == 1 {
					minusEliminated = true
				}
				if plusEliminated && minusEliminated {
					break
				}
			}
		}

		plus := addOne(prim)
		if !plusEliminated && !trialDivide(plus, sieve) {
			if out := viaPocklington(plus, factors, p.MRRounds); out.Prime {
				found++
				publishPrimeFound(p, PrimeReport{
					Form: "primorial", Expression: fmt.Sprintf("%d# + 1", prime),
					Digits: digitCount(plus), ProofMethod: out.Method,
				})
			}
		}
		tested++

		minus := subOne(prim)
		if minus.Sign() > 0 && !minusEliminated && !trialDivide(minus, sieve) {
			if out := viaMorrison(minus, factors, p.MRRounds); out.Prime {
				found++
				publishPrimeFound(p, PrimeReport{
					Form: "primorial", Expression: fmt.Sprintf("%d# - 1", prime),
					Digits: digitCount(minus), ProofMethod: out.Method,
				})
			}
		}
		tested++

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found)
		p.Progress.SetCurrent(fmt.Sprintf("p=%d", prime))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			saveCheckpoint(p.CheckpointPath, "primorial", prime)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, "primorial", p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

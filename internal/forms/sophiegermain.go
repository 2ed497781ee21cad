package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// SophieGermainEngine searches p = k*b^n-1 with safe prime 2p+1 =
// 2k*b^n-1, sieving both forms and intersecting the survivor maps. Only
// the p expression is emitted (the "-1" form).
type SophieGermainEngine struct{}

func (SophieGermainEngine) Form() string { return "sophie_germain" }

func (e SophieGermainEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "sophie_germain"
	k, base := kbnParams(p.ExtraParams)
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)
	_, survP := kbnSieve(start, p.RangeEnd, k, base, sieve)
	_, survQ := kbnSieve(start, p.RangeEnd, 2*k, base, sieve)
	sieveMinN := sieveMinNFor(base, p.SieveLimit)

	var tested, found uint64
	lastCheckpoint := time.Now()

	for n := start; n < p.RangeEnd; n++ {
		if n < sieveMinN || (survP.Alive(n) && survQ.Alive(n)) {
			if method, primeP, ok := testSophieGermainPair(k, base, n, sieve, p.MRRounds); ok {
				found++
				publishPrimeFound(p, PrimeReport{
					Form:        form,
					Expression:  fmt.Sprintf("%d*%d^%d - 1", k, base, n),
					Digits:      digitCount(primeP),
					ProofMethod: method,
				})
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

func testSophieGermainPair(k, base, n uint64, sieve []uint64, mrRounds int) (method string, primeP *big.Int, ok bool) {
	bn := bigmath.PowBig(new(big.Int).SetUint64(base), n)
	p := subOne(bigmath.MulBig(new(big.Int).SetUint64(k), bn))
	q := subOne(bigmath.MulBig(new(big.Int).SetUint64(2*k), bn))
	if p.Sign() <= 0 || trialDivide(p, sieve) || trialDivide(q, sieve) {
		return "", nil, false
	}

	var outP, outQ testOutcome
	if base == 2 && k%2 == 1 && k < powTwo(n) && n >= 3 {
		outP = viaLLR(p, k, n, mrRounds)
	} else {
		outP = viaMillerRabin(p, mrRounds)
	}
	if !outP.Prime {
		return "", nil, false
	}
	// The safe prime 2k*2^n-1 is k*2^(n+1)-1, which keeps k odd for the
	// LLR decomposition.
	if base == 2 && k%2 == 1 && k < powTwo(n+1) && n+1 >= 3 {
		outQ = viaLLR(q, k, n+1, mrRounds)
	} else {
		outQ = viaMillerRabin(q, mrRounds)
	}
	if !outQ.Prime {
		return "", nil, false
	}
	return outP.Method, p, true
}

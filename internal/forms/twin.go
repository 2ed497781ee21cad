package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// TwinEngine searches for twin prime pairs k*b^n-1, k*b^n+1 -- both members
// of the k*b^n+-1 pair must be prime.
type TwinEngine struct{}

func (TwinEngine) Form() string { return "twin" }

func (e TwinEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "twin"
	k, base := kbnParams(p.ExtraParams)
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)
	survPlus, survMinus := kbnSieve(start, p.RangeEnd, k, base, sieve)
	sieveMinN := sieveMinNFor(base, p.SieveLimit)

	var tested, found uint64
	lastCheckpoint := time.Now()
	kBig := new(big.Int).SetUint64(k)

	for n := start; n < p.RangeEnd; n++ {
		if n < sieveMinN || (survPlus.Alive(n) && survMinus.Alive(n)) {
			if method, digits, ok := testTwinPair(kBig, k, base, n, sieve, p.MRRounds); ok {
				found++
				publishPrimeFound(p, PrimeReport{
					Form:        form,
					Expression:  fmt.Sprintf("%d*%d^%d +/- 1", k, base, n),
					Digits:      digits,
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

// testTwinPair runs both deterministic/MR pipelines for k*b^n+-1 and
// reports the pair prime only when both members pass.
func testTwinPair(kBig *big.Int, k, base, n uint64, sieve []uint64, mrRounds int) (method string, digits int64, ok bool) {
	bn := bigmath.PowBig(new(big.Int).SetUint64(base), n)
	kbnVal := bigmath.MulBig(kBig, bn)
	plus := addOne(kbnVal)
	minus := subOne(kbnVal)
	if minus.Sign() <= 0 || trialDivide(plus, sieve) || trialDivide(minus, sieve) {
		return "", 0, false
	}

	var outPlus testOutcome
	if base == 2 && k < powTwo(n) {
		outPlus = viaProth(plus, kBig, n, mrRounds)
	} else {
		factors := mergeFactors(distinctPrimeFactors(k), distinctPrimeFactors(base))
		outPlus = viaPocklington(plus, factors, mrRounds)
	}
	if !outPlus.Prime {
		return "", 0, false
	}

	var outMinus testOutcome
	if base == 2 && k%2 == 1 && k < powTwo(n) && n >= 3 {
		outMinus = viaLLR(minus, k, n, mrRounds)
	} else {
		outMinus = viaMillerRabin(minus, mrRounds)
	}
	if !outMinus.Prime {
		return "", 0, false
	}
	return outMinus.Method, digitCount(minus), true
}

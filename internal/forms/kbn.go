package forms

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

// kbnParams extracts {k, base} from a phase's search_params, defaulting to
// k=1, base=2 (Mersenne-shaped candidates) when absent.
func kbnParams(extra map[string]any) (k, base uint64) {
	k, base = 1, 2
	if v, ok := extra["k"]; ok {
		k = toUint64(v)
	}
	if v, ok := extra["base"]; ok {
		base = toUint64(v)
	}
	return k, base
}

func toUint64(v any) uint64 {
	switch t := v.(type) {
	case float64:
		return uint64(t)
	case int64:
		return uint64(t)
	case int:
		return uint64(t)
	case uint64:
		return t
	default:
		return 0
	}
}

// kbnSieve eliminates n in [lo,hi) for which q | k*base^n+-1, for every odd
// sieve prime q not dividing base or k: solve base^n === -+k^-1 (mod q) via
// BSGS and mark the resulting arithmetic progression.
func kbnSieve(lo, hi, k, base uint64, sieve []uint64) (survPlus, survMinus *survivorSet) {
	survPlus = newSurvivorSet(lo, hi)
	survMinus = newSurvivorSet(lo, hi)
	for _, q := range sieve {
		if q == 2 || base%q == 0 {
			continue
		}
		kMod := k % q
		if kMod == 0 {
			continue
		}
		kInv, ok := bigmath.ModInverse(kMod, q)
		if !ok {
			continue
		}
		baseMod := base % q
		ord := bigmath.MultiplicativeOrder(baseMod, q)
		if ord == 0 {
			continue
		}
		if n0, ok := bigmath.DiscreteLogBSGS(baseMod, (q-kInv)%q, q, ord); ok {
			markProgression(lo, hi, n0, ord, survPlus.Mark)
		}
		if n0, ok := bigmath.DiscreteLogBSGS(baseMod, kInv%q, q, ord); ok {
			markProgression(lo, hi, n0, ord, survMinus.Mark)
		}
	}
	return survPlus, survMinus
}

// KBNEngine searches k*b^n+-1 for fixed k,base over a range of n. Its
// kbnSieve also backs TwinEngine (twin.go), which intersects the +1 and -1
// survivors of one pass, and SophieGermainEngine (sophiegermain.go), which
// intersects the -1 survivors of the passes for k and 2k.
type KBNEngine struct{}

func (KBNEngine) Form() string { return "kbn" }

func (e KBNEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	k, base := kbnParams(p.ExtraParams)
	return searchKBN(p, "kbn", k, base, true, true)
}

// searchKBN is KBNEngine's implementation; wantPlus and wantMinus select
// which of the +1 and -1 candidates are tested.
func searchKBN(p SearchParams, form string, k, base uint64, wantPlus, wantMinus bool) (Result, error) {
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)
	survPlus, survMinus := kbnSieve(start, p.RangeEnd, k, base, sieve)
	sieveMinN := sieveMinNFor(base, p.SieveLimit)

	var tested uint64
	var found atomic.Uint64
	pool := newTestPool(p.Workers)
	lastCheckpoint := time.Now()
	kBig := new(big.Int).SetUint64(k)

	for n := start; n < p.RangeEnd; n++ {
		bn := bigmath.PowBig(new(big.Int).SetUint64(base), n)
		kbnVal := bigmath.MulBig(kBig, bn)

		if wantPlus && (n < sieveMinN || survPlus.Alive(n)) {
			candidate := addOne(kbnVal)
			pool.submit(func() {
				if trialDivide(candidate, sieve) {
					return
				}
				var out testOutcome
				if base == 2 && k < powTwo(n) {
					out = viaProth(candidate, kBig, n, p.MRRounds)
				} else {
					factors := mergeFactors(distinctPrimeFactors(k), distinctPrimeFactors(base))
					out = viaPocklington(candidate, factors, p.MRRounds)
				}
				if out.Prime {
					found.Add(1)
					publishPrimeFound(p, PrimeReport{
						Form: form, Expression: fmt.Sprintf("%d*%d^%d + 1", k, base, n),
						Digits: digitCount(candidate), ProofMethod: out.Method,
					})
				}
			})
			tested++
		}

		if wantMinus && (n < sieveMinN || survMinus.Alive(n)) {
			candidate := subOne(kbnVal)
			if candidate.Sign() > 0 {
				pool.submit(func() {
					if trialDivide(candidate, sieve) {
						return
					}
					var out testOutcome
					if base == 2 && k%2 == 1 && k < powTwo(n) && n >= 3 {
						out = viaLLR(candidate, k, n, p.MRRounds)
					} else {
						out = viaMillerRabin(candidate, p.MRRounds)
					}
					if out.Prime {
						found.Add(1)
						publishPrimeFound(p, PrimeReport{
							Form: form, Expression: fmt.Sprintf("%d*%d^%d - 1", k, base, n),
							Digits: digitCount(candidate), ProofMethod: out.Method,
						})
					}
				})
			}
			tested++
		}

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found.Load())
		p.Progress.SetCurrent(fmt.Sprintf("n=%d", n))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			pool.wait()
			saveCheckpoint(p.CheckpointPath, form, n)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found.Load()}, nil
			}
		}
	}

	pool.wait()
	saveCheckpoint(p.CheckpointPath, form, p.RangeEnd-1)
	return Result{Tested: tested, Found: found.Load()}, nil
}

// sieveMinNFor computes the smallest n at which base^n exceeds sieveLimit;
// below it, candidates could coincide with a sieve prime itself and must
// bypass the sieve entirely.
func sieveMinNFor(base, sieveLimit uint64) uint64 {
	if base < 2 || sieveLimit == 0 {
		return 0
	}
	var n uint64
	v := uint64(1)
	for v <= sieveLimit {
		v *= base
		n++
		if v == 0 { // overflow guard
			break
		}
	}
	return n
}

func powTwo(n uint64) uint64 {
	if n >= 63 {
		return ^uint64(0)
	}
	return uint64(1) << n
}

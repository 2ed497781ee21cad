package forms

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/darkreach/darkreach/internal/bigmath"
)

func nearRepdigitParams(extra map[string]any) (d, m uint64) {
	d, m = 1, 1
	if v, ok := extra["digit"]; ok {
		if dv := toUint64(v); dv >= 1 && dv <= 9 {
			d = dv
		}
	}
	if v, ok := extra["m"]; ok {
		if mv := toUint64(v); mv >= 1 {
			m = mv
		}
	}
	return d, m
}

// NearRepdigitEngine searches N(k) = 10^(2k+1) - 1 - d*(10^(k+m)+10^(k-m))
// over k, for fixed digit d and half-offset m. N(k)+1 = 10^(k-m) * C, with
// C = 10^(k+m+1) - d*10^(2m) - d, so 10^(k-m) is a trivially factored
// part contributing (k-m)*log2(10) bits. The sieve
// evaluates N(k) mod q directly via modular exponentiation, never
// constructing the full candidate for eliminated k.
type NearRepdigitEngine struct{}

func (NearRepdigitEngine) Form() string { return "near_repdigit" }

func (e NearRepdigitEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "near_repdigit"
	d, m := nearRepdigitParams(p.ExtraParams)
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start <= m {
		start = m + 1
	}
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	sieve := bigmath.GeneratePrimes(p.SieveLimit)

	var tested, found uint64
	lastCheckpoint := time.Now()

	for k := start; k < p.RangeEnd; k++ {
		eliminated := false
		// N(k) > 10^(2k), so once 10^(2k) exceeds the sieve limit no
		// candidate can coincide with a sieve prime; below that, bypass.
		if powExceeds(10, 2*k, p.SieveLimit) {
			for _, q := range sieve {
				if q == 2 || q == 5 {
					continue
				}
				t1 := bigmath.PowMod(10, 2*k+1, q)
				t2 := bigmath.PowMod(10, k+m, q)
				t3 := bigmath.PowMod(10, k-m, q)
				val := (t1 + q - 1 + q - (d*t2)%q + q - (d*t3)%q) % q
				if val == 0 {
					eliminated = true
					break
				}
			}
		}

		if !eliminated {
			twoKPlus1 := bigmath.PowBig(bigTen, 2*k+1)
			dBig := new(big.Int).SetUint64(d)
			term2 := bigmath.MulBig(dBig, bigmath.PowBig(bigTen, k+m))
			term3 := bigmath.MulBig(dBig, bigmath.PowBig(bigTen, k-m))
			candidate := new(big.Int).Sub(twoKPlus1, big1)
			candidate.Sub(candidate, term2)
			candidate.Sub(candidate, term3)

			if candidate.Sign() > 0 && !trialDivide(candidate, sieve) {
				fullFactor := bigmath.PowBig(bigTen, k-m)
				out := viaBLS(candidate, []uint64{2, 5}, fullFactor, p.MRRounds)
				if out.Prime {
					found++
					var expr string
					if m == 0 {
						expr = fmt.Sprintf("10^%d - 1 - %d*10^%d", 2*k+1, d, k)
					} else {
						expr = fmt.Sprintf("10^%d - 1 - %d*(10^%d + 10^%d)", 2*k+1, d, k+m, k-m)
					}
					publishPrimeFound(p, PrimeReport{
						Form:        form,
						Expression:  expr,
						Digits:      digitCount(candidate),
						ProofMethod: out.Method,
					})
				}
			}
		}
		tested++

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found)
		p.Progress.SetCurrent(fmt.Sprintf("k=%d", k))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			saveCheckpoint(p.CheckpointPath, form, k)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, form, p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

var bigTen = big.NewInt(10)

package forms

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// PalindromicEngine searches odd-digit-length palindromes built by
// mirroring a half value h: "12321" from h=123. Even-digit-length
// palindromes (other than the single-digit trivial cases) are always
// divisible by 11 and are skipped rather than tested. There is no modular
// sieve for this form; candidates are constructed directly and run through
// MR.
type PalindromicEngine struct{}

func (PalindromicEngine) Form() string { return "palindromic" }

func (e PalindromicEngine) Search(ctx context.Context, p SearchParams) (Result, error) {
	form := "palindromic"
	start := resumeStart(p.CheckpointPath, form, p.RangeStart, p.RangeEnd)
	if start < 1 {
		start = 1
	}
	if start >= p.RangeEnd {
		return Result{}, nil
	}

	var tested, found uint64
	lastCheckpoint := time.Now()

	for half := start; half < p.RangeEnd; half++ {
		s := strconv.FormatUint(half, 10)
		mirror := reverseString(s[:len(s)-1])
		text := s + mirror
		if candidate, ok := new(big.Int).SetString(text, 10); ok {
			out := viaMillerRabin(candidate, p.MRRounds)
			if out.Prime {
				found++
				publishPrimeFound(p, PrimeReport{
					Form:        form,
					Expression:  text,
					Digits:      digitCount(candidate),
					ProofMethod: out.Method,
				})
			}
		}
		tested++

		p.Progress.Tested.Store(tested)
		p.Progress.Found.Store(found)
		p.Progress.SetCurrent(fmt.Sprintf("half=%d", half))

		if time.Since(lastCheckpoint) >= checkpointInterval {
			saveCheckpoint(p.CheckpointPath, form, half)
			lastCheckpoint = time.Now()
			if isStopRequested(p) {
				return Result{Tested: tested, Found: found}, nil
			}
		}
	}

	saveCheckpoint(p.CheckpointPath, form, p.RangeEnd-1)
	return Result{Tested: tested, Found: found}, nil
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

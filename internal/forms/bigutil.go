package forms

import "math/big"

func bigFromUint64(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

// modBigMod returns v mod q as a uint64, for q small enough to fit.
func modBigMod(v *big.Int, q *big.Int) uint64 {
	r := new(big.Int).Mod(v, q)
	return r.Uint64()
}

func addOne(v *big.Int) *big.Int { return new(big.Int).Add(v, big1) }
func subOne(v *big.Int) *big.Int { return new(big.Int).Sub(v, big1) }

// distinctPrimeFactors returns the distinct prime factors of n via trial
// division, for building a complete Pocklington/Morrison factor set from a
// known-factored cofactor (e.g. k*base^n's factorization is exactly the
// factors of k union the factors of base).
func distinctPrimeFactors(n uint64) []uint64 {
	var factors []uint64
	for p := uint64(2); p*p <= n; p++ {
		if n%p == 0 {
			factors = append(factors, p)
			for n%p == 0 {
				n /= p
			}
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}

// mergeFactors unions two factor lists without duplicates.
func mergeFactors(a, b []uint64) []uint64 {
	seen := make(map[uint64]bool, len(a)+len(b))
	out := make([]uint64, 0, len(a)+len(b))
	for _, f := range a {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range b {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

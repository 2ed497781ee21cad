package proof

import "math/big"

// prothWitnessBases are the bases tried in ascending order; a fraction
// (q-1)/q of bases work for each factor q of N-1, so 2 is enough almost
// always and the rest are cheap fallbacks.
var prothWitnessBases = []int64{2, 3, 5, 7, 11, 13}

// Proth proves N = k*2^n+1 (k odd, k < 2^n) prime by finding a witness a
// with a^((N-1)/2) === -1 (mod N). Pepin's test for generalized Fermat
// numbers is the special case k=1 (see Pepin in pepin.go), and Cullen
// primes (k=n) always satisfy k < 2^n for n >= 1.
func Proth(candidate *big.Int, k *big.Int, n uint64) Verdict {
	nMinus1 := new(big.Int).Sub(candidate, big1)
	half := new(big.Int).Rsh(nMinus1, 1) // (N-1)/2, valid since N-1 = k*2^n is even for n>=1

	negOne := new(big.Int).Sub(candidate, big1)
	for _, a := range prothWitnessBases {
		base := big.NewInt(a)
		if base.Cmp(candidate) >= 0 {
			continue
		}
		r := new(big.Int).Exp(base, half, candidate)
		if r.Cmp(negOne) == 0 {
			return ProvenPrime
		}
		// For prime N, a^((N-1)/2) is always +-1 (Euler); any other
		// residue proves compositeness outright.
		if r.Cmp(big1) != 0 {
			return ProvenComposite
		}
	}
	return Inconclusive
}

package proof

import "math/big"

// pepinMaxBase bounds the search for a quadratic non-residue base; for
// generalized Fermat candidates this almost always succeeds with one of the
// first few small primes.
const pepinMaxBase = 200

// Pepin proves candidate = b^(2^n)+1 prime via the generalized Pepin test:
// find a with Jacobi(a, candidate) = -1, then candidate is prime iff
// a^((candidate-1)/2) === -1 (mod candidate). Unlike the probabilistic
// kernels, any other residue is a deterministic proof of compositeness
// (Euler's criterion: a genuine quadratic non-residue mod a prime N must
// raise to exactly -1, never +1 or anything else, at the (N-1)/2 power).
// b=2 is the classical Fermat-number case.
func Pepin(candidate *big.Int) Verdict {
	a, ok := findNonResidue(candidate)
	if !ok {
		return Inconclusive
	}

	half := new(big.Int).Rsh(new(big.Int).Sub(candidate, big1), 1)
	r := new(big.Int).Exp(a, half, candidate)

	negOne := new(big.Int).Sub(candidate, big1)
	if r.Cmp(negOne) == 0 {
		return ProvenPrime
	}
	return ProvenComposite
}

func findNonResidue(candidate *big.Int) (*big.Int, bool) {
	for _, p := range []int64{3, 5, 7, 11, 13, 17, 19, 23, 29, 31} {
		a := big.NewInt(p)
		if a.Cmp(candidate) >= 0 {
			continue
		}
		if big.Jacobi(a, candidate) == -1 {
			return a, true
		}
	}
	for p := int64(37); p < pepinMaxBase; p += 2 {
		a := big.NewInt(p)
		if big.Jacobi(a, candidate) == -1 {
			return a, true
		}
	}
	return nil, false
}

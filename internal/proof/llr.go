package proof

import "math/big"

// LLR proves N = k*2^n - 1 (k odd, 1 <= k < 2^n, n >= 3) prime via the
// Lucas-Lehmer-Riesel test: find P with Jacobi(P^2-4, N) = -1, seed
// S_0 = V_k(P,1) mod N, iterate S_i = S_{i-1}^2 - 2 mod N for n-2 steps, and
// declare prime iff S_{n-2} === 0 (mod N).
func LLR(candidate *big.Int, k uint64, n uint64) Verdict {
	if n < 3 {
		return Inconclusive
	}
	p, ok := findRieselP(candidate, new(big.Int).SetUint64(k))
	if !ok {
		return Inconclusive
	}
	return llrIterate(candidate, LucasVUint64(k, p, candidate), n)
}

// LLRBig is LLR with an arbitrary-precision k, for forms (Carol/Kynea)
// whose reduced multiplier can exceed 64 bits.
func LLRBig(candidate *big.Int, k *big.Int, n uint64) Verdict {
	if n < 3 {
		return Inconclusive
	}
	p, ok := findRieselP(candidate, k)
	if !ok {
		return Inconclusive
	}
	return llrIterate(candidate, LucasV(k, p, candidate), n)
}

// llrIterate runs the Riesel squaring chain from u_0 = V_k(P,1):
// u_{i+1} = u_i^2 - 2; N prime iff u_{n-2} === 0.
func llrIterate(candidate, u *big.Int, n uint64) Verdict {
	for i := uint64(0); i < n-2; i++ {
		u.Mul(u, u)
		u.Sub(u, big2)
		u.Mod(u, candidate)
	}
	if u.Sign() == 0 {
		return ProvenPrime
	}
	return ProvenComposite
}

// findRieselP picks the Lucas discriminant for the Riesel test: P = 4
// whenever 3 does not divide k, otherwise the smallest P >= 5 with
// Jacobi(P-2,N) = 1 and Jacobi(P+2,N) = -1.
func findRieselP(candidate *big.Int, k *big.Int) (p int64, ok bool) {
	if new(big.Int).Mod(k, big3).Sign() != 0 {
		return 4, true
	}
	for cand := int64(5); cand < 1005; cand++ {
		if big.Jacobi(big.NewInt(cand-2), candidate) == 1 &&
			big.Jacobi(big.NewInt(cand+2), candidate) == -1 {
			return cand, true
		}
	}
	return 0, false
}

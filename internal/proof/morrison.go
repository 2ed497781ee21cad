package proof

import "math/big"

// morrisonMaxP bounds the search for a discriminant P^2-4 that is a
// non-residue mod N; this is the N+1 dual of Pocklington's witness search.
const morrisonMaxP = 1000

// MorrisonNPlus1 proves candidate prime via Morrison's N+1 test, the Lucas
// sequence dual of Pocklington: factors is the list of distinct prime
// factors of a factored portion F of N+1 with F^2 > N (caller's
// responsibility). For a discriminant P with
// Jacobi(P^2-4, N) = -1 and Lucas sequence V(*, P, 1):
//
//	V(N+1)       === 2               (mod N)   (global condition)
//	gcd(V((N+1)/q) - 2, N) = 1                  (per factor q)
//
// Different factors may need different P values to satisfy their gcd
// condition, so satisfied factors accumulate across the P search instead of
// requiring one P to work for all of them at once.
func MorrisonNPlus1(candidate *big.Int, factors []uint64) Verdict {
	nPlus1 := new(big.Int).Add(candidate, big1)
	if len(factors) == 0 {
		return Inconclusive
	}

	satisfied := make(map[uint64]bool, len(factors))
	remaining := len(factors)

	for p := int64(3); p < morrisonMaxP && remaining > 0; p++ {
		disc := new(big.Int).Sub(big.NewInt(p*p), big.NewInt(4))
		if big.Jacobi(disc, candidate) != -1 {
			continue
		}

		vFull := LucasV(nPlus1, p, candidate)
		twoMod := new(big.Int).Mod(big2, candidate)
		if vFull.Cmp(twoMod) != 0 {
			continue
		}

		for _, q := range factors {
			if satisfied[q] {
				continue
			}
			qBig := new(big.Int).SetUint64(q)
			expQ := new(big.Int).Div(nPlus1, qBig)
			v := LucasV(expQ, p, candidate)
			v.Sub(v, big2)
			v.Mod(v, candidate)
			g := new(big.Int).GCD(nil, nil, v, candidate)
			if g.Cmp(big1) == 0 {
				satisfied[q] = true
				remaining--
			}
		}
	}

	if remaining == 0 {
		return ProvenPrime
	}
	return Inconclusive
}

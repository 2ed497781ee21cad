package proof

import "math/big"

// pocklingtonMaxWitness bounds the per-factor witness search; a fraction
// 1-1/q of bases satisfy the gcd condition for a genuine prime factor q, so
// 200 attempts is comfortably more than enough even for q=2.
const pocklingtonMaxWitness = 200

// PocklingtonNMinus1 proves candidate prime via Pocklington's theorem: N-1's
// factored portion is the product of the given distinct prime factors
// (caller is responsible for verifying that portion exceeds sqrt(N)). For
// each factor q, it searches a witness a in [2,200] with
//
//	a^(N-1) === 1 (mod N)                         (Fermat)
//	gcd(a^((N-1)/q) - 1, N) = 1                    (Pocklington)
//
// A Fermat-test failure for any witness is itself a deterministic proof of
// compositeness, so it short-circuits to ProvenComposite rather than being
// treated as merely inconclusive.
func PocklingtonNMinus1(candidate *big.Int, factors []uint64) Verdict {
	nMinus1 := new(big.Int).Sub(candidate, big1)
	if len(factors) == 0 {
		if candidate.Cmp(big2) == 0 {
			return ProvenPrime
		}
		return Inconclusive
	}

	for _, q := range factors {
		qBig := new(big.Int).SetUint64(q)
		expQ := new(big.Int).Div(nMinus1, qBig)

		satisfied := false
		for a := int64(2); a <= pocklingtonMaxWitness; a++ {
			base := big.NewInt(a)
			if base.Cmp(candidate) >= 0 {
				continue
			}
			fermat := new(big.Int).Exp(base, nMinus1, candidate)
			if fermat.Cmp(big1) != 0 {
				return ProvenComposite
			}
			r := new(big.Int).Exp(base, expQ, candidate)
			r.Sub(r, big1)
			g := new(big.Int).GCD(nil, nil, r, candidate)
			if g.Cmp(big1) == 0 {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return Inconclusive
		}
	}
	return ProvenPrime
}

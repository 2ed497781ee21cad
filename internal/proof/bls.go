package proof

import "math/big"

// blsMaxP mirrors morrisonMaxP: the discriminant search bound shared by the
// Lucas-sequence per-factor conditions BLS reuses from Morrison.
const blsMaxP = 1000

// BLSNPlus1 proves candidate prime from only a PARTIAL factorization of
// N+1: factor is the product of the known distinct prime factors (fullFactor
// must exceed candidate's cube root, the Brillhart-Lehmer-Selfridge N+1
// bound -- weaker than Pocklington/Morrison's square-root requirement,
// which is what makes partial factorization usable for near-repdigit
// candidates whose N+1 rarely factors completely). Each known factor must
// satisfy the same Lucas-sequence condition as MorrisonNPlus1; the
// unfactored cofactor is then screened by the BLS discriminant check so it
// cannot silently hide a missed composite factor.
func BLSNPlus1(candidate *big.Int, factors []uint64, fullFactor *big.Int) Verdict {
	if fullFactor.Sign() <= 0 || len(factors) == 0 {
		return Inconclusive
	}
	cube := new(big.Int).Exp(fullFactor, big.NewInt(3), nil)
	if cube.Cmp(candidate) <= 0 {
		return Inconclusive
	}

	nPlus1 := new(big.Int).Add(candidate, big1)
	cofactor := new(big.Int).Div(nPlus1, fullFactor)

	satisfied := make(map[uint64]bool, len(factors))
	remaining := len(factors)

	for p := int64(3); p < blsMaxP && remaining > 0; p++ {
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
	if remaining != 0 {
		return Inconclusive
	}

	// BLS discriminant screen on the unfactored cofactor: r = C mod 2F; N
	// is composite if r^2 - 4N is a perfect square (Brillhart-Lehmer-
	// Selfridge 1975, Theorem 19 applied to the N+1 case).
	twoF := new(big.Int).Lsh(fullFactor, 1)
	r := new(big.Int).Mod(cofactor, twoF)
	disc := new(big.Int).Mul(r, r)
	fourN := new(big.Int).Lsh(candidate, 2)
	disc.Sub(disc, fourN)
	if disc.Sign() >= 0 && isPerfectSquare(disc) {
		return ProvenComposite
	}
	return ProvenPrime
}

func isPerfectSquare(n *big.Int) bool {
	if n.Sign() < 0 {
		return false
	}
	root := new(big.Int).Sqrt(n)
	sq := new(big.Int).Mul(root, root)
	return sq.Cmp(n) == 0
}

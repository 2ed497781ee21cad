package forms

import (
	"math/big"

	"github.com/darkreach/darkreach/internal/proof"
)

// testOutcome is the result of running the step-4 pipeline on
// one candidate: deterministic proof, else Miller-Rabin fallback.
type testOutcome struct {
	Prime  bool
	Method string // proof_method taxonomy string
}

const (
	methodPocklington   = "deterministic (Pocklington N-1)"
	methodMorrison      = "deterministic (Morrison N+1)"
	methodLLR           = "deterministic (LLR)"
	methodProth         = "deterministic"
	methodPepin         = "deterministic"
	methodBLS           = "deterministic (Morrison N+1)"
	methodProbabilistic = "probabilistic"
)

// mrScreenRounds is the cheap pre-screen applied before the full mr_rounds
// pass.
const mrScreenRounds = 2

// viaMillerRabin runs the 2-round prescreen then the full mr_rounds pass,
// the universal fallback when no deterministic kernel is applicable or
// conclusive.
func viaMillerRabin(candidate *big.Int, mrRounds int) testOutcome {
	if proof.MillerRabin(candidate, mrScreenRounds) == proof.ProvenComposite {
		return testOutcome{Prime: false}
	}
	if proof.MillerRabin(candidate, mrRounds) == proof.ProvenComposite {
		return testOutcome{Prime: false}
	}
	return testOutcome{Prime: true, Method: methodProbabilistic}
}

// viaPocklington attempts the N-1 deterministic proof, falling back to MR.
func viaPocklington(candidate *big.Int, factors []uint64, mrRounds int) testOutcome {
	switch proof.PocklingtonNMinus1(candidate, factors) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodPocklington}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// viaMorrison attempts the N+1 deterministic proof, falling back to MR.
func viaMorrison(candidate *big.Int, factors []uint64, mrRounds int) testOutcome {
	switch proof.MorrisonNPlus1(candidate, factors) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodMorrison}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// viaProth attempts the Proth/Pocklington-special-case proof for N=k*2^n+1.
func viaProth(candidate, k *big.Int, n uint64, mrRounds int) testOutcome {
	switch proof.Proth(candidate, k, n) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodProth}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// viaLLR attempts the LLR/Riesel proof for N=k*2^n-1.
func viaLLR(candidate *big.Int, k, n uint64, mrRounds int) testOutcome {
	switch proof.LLR(candidate, k, n) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodLLR}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// viaLLRBig is viaLLR with an arbitrary-precision k (Carol/Kynea).
func viaLLRBig(candidate *big.Int, k *big.Int, n uint64, mrRounds int) testOutcome {
	switch proof.LLRBig(candidate, k, n) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodLLR}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// viaPepin attempts Pepin's test for generalized Fermat numbers.
func viaPepin(candidate *big.Int, mrRounds int) testOutcome {
	switch proof.Pepin(candidate) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodPepin}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// viaBLS attempts the BLS N+1 partial-factorization proof, falling back to
// MR when the proof is inconclusive.
func viaBLS(candidate *big.Int, factors []uint64, fullFactor *big.Int, mrRounds int) testOutcome {
	switch proof.BLSNPlus1(candidate, factors, fullFactor) {
	case proof.ProvenPrime:
		return testOutcome{Prime: true, Method: methodBLS}
	case proof.ProvenComposite:
		return testOutcome{Prime: false}
	default:
		return viaMillerRabin(candidate, mrRounds)
	}
}

// digitCount returns the base-10 digit count of a positive big.Int.
func digitCount(n *big.Int) int64 {
	return int64(len(n.Text(10)))
}

// trialDivide reports whether any prime in sieve divides candidate exactly,
// a cheap pre-filter before the more expensive kernels/MR.
func trialDivide(candidate *big.Int, sieve []uint64) bool {
	rem := new(big.Int)
	q := new(big.Int).SetUint64(0)
	for _, p := range sieve {
		q.SetUint64(p)
		if candidate.Cmp(q) <= 0 {
			break
		}
		rem.Mod(candidate, q)
		if rem.Sign() == 0 {
			return true
		}
	}
	return false
}

package proof

import "math/big"

// MillerRabin screens candidate with rounds independent Miller-Rabin trials
// via the standard library's implementation. It returns ProvenComposite on
// any failed round and Inconclusive otherwise -- Miller-Rabin alone never
// yields ProvenPrime, since it is probabilistic; a passing screen only
// clears candidate for a deterministic kernel.
func MillerRabin(candidate *big.Int, rounds int) Verdict {
	if !candidate.ProbablyPrime(rounds) {
		return ProvenComposite
	}
	return Inconclusive
}

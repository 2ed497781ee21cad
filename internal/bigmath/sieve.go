// Package bigmath implements the modular sieve primitives shared by every
// per-form search engine: the Sieve of Eratosthenes, modular exponentiation,
// modular inverse, multiplicative order, and a baby-step-giant-step discrete
// log, plus arbitrary-precision helpers used to build and multiply the huge
// candidate values the proof kernels consume.
package bigmath

// GeneratePrimes returns the ordered primes <= limit using the Sieve of
// Eratosthenes. Returns an empty slice for limit < 2.
func GeneratePrimes(limit uint64) []uint64 {
	if limit < 2 {
		return nil
	}
	sieve := make([]bool, limit+1)
	for i := range sieve {
		sieve[i] = true
	}
	sieve[0], sieve[1] = false, false
	for i := uint64(2); i*i <= limit; i++ {
		if !sieve[i] {
			continue
		}
		for j := i * i; j <= limit; j += i {
			sieve[j] = false
		}
	}
	primes := make([]uint64, 0, limit/10+1)
	for i, isPrime := range sieve {
		if isPrime {
			primes = append(primes, uint64(i))
		}
	}
	return primes
}

// ResolveSieveLimit picks a sieve bound when hint == 0, trading sieve cost
// against candidate-testing cost: wider parameter ranges amortize a bigger
// sieve, but the sieve itself must stay well below where trial division
// would be cheaper per-candidate than a single BSGS lookup.
func ResolveSieveLimit(hint uint64, candidateBits uint64, nRange uint64) uint64 {
	if hint != 0 {
		return hint
	}
	switch {
	case nRange <= 1_000:
		return 10_000
	case nRange <= 100_000:
		return 1_000_000
	case candidateBits > 1_000_000:
		return 50_000_000
	default:
		return 10_000_000
	}
}

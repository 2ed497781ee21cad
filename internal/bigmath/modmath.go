package bigmath

import (
	"math"
	"math/bits"
)

// PowMod computes base^exp mod m via square-and-multiply, using 128-bit
// multiply/divide intermediates (math/bits.Mul64 / Div64) so the
// multiplication never overflows for moduli approaching 2^63.
func PowMod(base, exp, m uint64) uint64 {
	if m == 1 {
		return 0
	}
	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, base, m)
		}
		exp >>= 1
		base = mulMod(base, base, m)
	}
	return result
}

// mulMod computes (a*b) mod m without overflow: a,b < m <= 2^64-1 implies
// the 128-bit product's high word is strictly less than m, so Div64 never
// panics on divide-overflow.
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo % m
	}
	_, rem := bits.Div64(hi, lo, m)
	return rem
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ModInverse returns the modular inverse of a mod p via the extended
// Euclidean algorithm, or ok=false iff gcd(a,p) != 1.
func ModInverse(a, p uint64) (inv uint64, ok bool) {
	if p == 0 {
		return 0, false
	}
	a %= p
	g, x, _ := extGCD(int64(a), int64(p))
	if g != 1 {
		return 0, false
	}
	x %= int64(p)
	if x < 0 {
		x += int64(p)
	}
	return uint64(x), true
}

// extGCD solves a*x + b*y = gcd(a,b) via the extended Euclidean algorithm.
func extGCD(a, b int64) (g, x, y int64) {
	if b == 0 {
		return a, 1, 0
	}
	g, x1, y1 := extGCD(b, a%b)
	return g, y1, x1 - (a/b)*y1
}

// MultiplicativeOrder returns the smallest k >= 1 with a^k === 1 (mod p),
// found by factoring p-1 and removing factors the order doesn't need.
// p must be prime and gcd(a,p) = 1.
func MultiplicativeOrder(a, p uint64) uint64 {
	if p <= 2 {
		return 1
	}
	a %= p
	if a == 0 {
		return 0
	}
	order := p - 1
	factors := primeFactors(order)
	for _, q := range factors {
		for order%q == 0 && PowMod(a, order/q, p) == 1 {
			order /= q
		}
	}
	return order
}

// primeFactors returns the distinct prime factors of n via trial division.
func primeFactors(n uint64) []uint64 {
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

// DiscreteLogBSGS finds the smallest non-negative n < ord with b^n === target
// (mod p) using baby-step-giant-step, where ord is the (known) order of b.
// Returns ok=false if no such n exists within one period.
func DiscreteLogBSGS(b, target, p, ord uint64) (n uint64, ok bool) {
	if ord == 0 {
		return 0, false
	}
	m := isqrtCeil(ord)
	babySteps := make(map[uint64]uint64, m)
	cur := uint64(1) % p
	for j := uint64(0); j < m; j++ {
		if _, exists := babySteps[cur]; !exists {
			babySteps[cur] = j
		}
		cur = mulMod(cur, b, p)
	}

	bInvM, invOK := ModInverse(PowMod(b, m, p), p)
	if !invOK {
		return 0, false
	}
	gamma := target % p
	for i := uint64(0); i < m; i++ {
		if j, exists := babySteps[gamma]; exists {
			candidate := i*m + j
			if candidate < ord {
				return candidate, true
			}
		}
		gamma = mulMod(gamma, bInvM, p)
	}
	return 0, false
}

func isqrtCeil(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	r := uint64(math.Sqrt(float64(n)))
	for r > 0 && r*r > n {
		r--
	}
	for r*r < n {
		r++
	}
	return r
}

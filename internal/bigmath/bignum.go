package bigmath

import (
	"math/big"

	"github.com/remyoudompheng/bigfft"
)

// fftThresholdBits is the operand bit-length above which bigfft's FFT-based
// multiply overtakes math/big's schoolbook/Karatsuba Mul — candidates built
// from n! for n in the thousands or k*2^n for n in the hundreds of
// thousands of bits cross this threshold routinely.
const fftThresholdBits = 1 << 15 // 32768 bits (~9900 decimal digits)

// MulBig multiplies two big.Ints, routing through bigfft.Mul once either
// operand is large enough that FFT multiplication beats math/big's default.
func MulBig(a, b *big.Int) *big.Int {
	if a.BitLen() >= fftThresholdBits || b.BitLen() >= fftThresholdBits {
		return bigfft.Mul(a, b)
	}
	return new(big.Int).Mul(a, b)
}

// PowBig computes base^exp via binary exponentiation using MulBig, so huge
// exponentiations (k*b^n construction) get FFT multiplication once operands
// grow large, without going through modular reduction.
func PowBig(base *big.Int, exp uint64) *big.Int {
	result := big.NewInt(1)
	b := new(big.Int).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result = MulBig(result, b)
		}
		exp >>= 1
		if exp > 0 {
			b = MulBig(b, b)
		}
	}
	return result
}

// FactorialBig computes n! via incremental MulBig multiplication, matching
// the search engines' extend-by-one-factor resume model.
func FactorialBig(n uint64) *big.Int {
	result := big.NewInt(1)
	for i := uint64(2); i <= n; i++ {
		result = MulBig(result, new(big.Int).SetUint64(i))
	}
	return result
}

// PrimorialBig computes the product of all primes <= n (p#) via incremental
// MulBig multiplication over the supplied ascending prime list.
func PrimorialBig(primes []uint64, n uint64) *big.Int {
	result := big.NewInt(1)
	for _, p := range primes {
		if p > n {
			break
		}
		result = MulBig(result, new(big.Int).SetUint64(p))
	}
	return result
}

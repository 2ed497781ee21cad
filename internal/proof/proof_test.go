package proof

import (
	"math/big"
	"testing"
)

func TestLucasVCrossValidatesWithClosedForm(t *testing.T) {
	// V_k(2,1) is the Lucas sequence with P=2,Q=1: V(k) = 2 for all k,
	// since the characteristic roots are both 1.
	n := big.NewInt(1_000_003)
	for k := int64(0); k < 20; k++ {
		got := LucasV(big.NewInt(k), 2, n)
		if got.Cmp(big2) != 0 {
			t.Fatalf("LucasV(%d,2,1) mod n = %s, want 2", k, got)
		}
	}
}

func TestLucasVMatchesRecurrence(t *testing.T) {
	n := big.NewInt(9_999_991)
	p := int64(5)
	v := make([]*big.Int, 12)
	v[0] = big.NewInt(2)
	v[1] = big.NewInt(p)
	for i := 2; i < len(v); i++ {
		v[i] = new(big.Int).Mul(v[i-1], big.NewInt(p))
		v[i].Sub(v[i], v[i-2])
		v[i].Mod(v[i], n)
	}
	for k := 0; k < len(v); k++ {
		got := LucasV(big.NewInt(int64(k)), p, n)
		if got.Cmp(v[k]) != 0 {
			t.Fatalf("LucasV(%d) = %s, want %s", k, got, v[k])
		}
	}
}

func TestProthProvesKnownPrimes(t *testing.T) {
	// 3*2^2+1 = 13, prime.
	if v := Proth(big.NewInt(13), big.NewInt(3), 2); v != ProvenPrime {
		t.Fatalf("Proth(13) = %v, want ProvenPrime", v)
	}
	// 5*2^4+1 = 81 = 3^4, composite; Proth must not claim prime.
	if v := Proth(big.NewInt(81), big.NewInt(5), 4); v == ProvenPrime {
		t.Fatalf("Proth(81) returned ProvenPrime for a composite")
	}
}

func TestPocklingtonFactorialEleven(t *testing.T) {
	// 11! + 1 = 39916801 = 39916801 (prime). Factors of 11! covering all
	// primes <= 11: 2,3,5,7,11.
	n := new(big.Int).SetInt64(39916801)
	factors := []uint64{2, 3, 5, 7, 11}
	if v := PocklingtonNMinus1(n, factors); v != ProvenPrime {
		t.Fatalf("PocklingtonNMinus1(11!+1) = %v, want ProvenPrime", v)
	}
}

func TestPocklingtonRejectsComposite(t *testing.T) {
	// 4! + 1 = 25 = 5^2, composite. Factors of 4! covering primes <= 4: 2,3.
	n := big.NewInt(25)
	factors := []uint64{2, 3}
	if v := PocklingtonNMinus1(n, factors); v == ProvenPrime {
		t.Fatalf("PocklingtonNMinus1(4!+1) returned ProvenPrime for 25")
	}
}

func TestLLRMersenne31(t *testing.T) {
	// 2^31 - 1 = 1*2^31 - 1, a Mersenne prime, expressible as k=1, n=31.
	n := new(big.Int).Lsh(big1, 31)
	n.Sub(n, big1)
	if v := LLR(n, 1, 31); v != ProvenPrime {
		t.Fatalf("LLR(2^31-1) = %v, want ProvenPrime", v)
	}
}

func TestLLRRejectsComposite(t *testing.T) {
	// 2^11 - 1 = 2047 = 23*89, composite.
	n := new(big.Int).Lsh(big1, 11)
	n.Sub(n, big1)
	if v := LLR(n, 1, 11); v != ProvenComposite {
		t.Fatalf("LLR(2^11-1) = %v, want ProvenComposite", v)
	}
}

func TestMorrisonMersenneViaNPlus1(t *testing.T) {
	// 2^13-1 = 8191, prime; 8191+1 = 8192 = 2^13, so the only factor is 2.
	n := new(big.Int).Lsh(big1, 13)
	n.Sub(n, big1)
	if v := MorrisonNPlus1(n, []uint64{2}); v != ProvenPrime {
		t.Fatalf("MorrisonNPlus1(8191) = %v, want ProvenPrime", v)
	}
}

func TestMorrisonRejectsComposite(t *testing.T) {
	// 2^11-1 = 2047 = 23*89; 2047+1 = 2048 = 2^11.
	n := new(big.Int).Lsh(big1, 11)
	n.Sub(n, big1)
	if v := MorrisonNPlus1(n, []uint64{2}); v == ProvenPrime {
		t.Fatalf("MorrisonNPlus1(2047) returned ProvenPrime for a composite")
	}
}

func TestBLSRequiresCubeCondition(t *testing.T) {
	n := big.NewInt(2047)
	// fullFactor too small to satisfy the cube bound: must be Inconclusive,
	// never a false proof.
	if v := BLSNPlus1(n, []uint64{2}, big.NewInt(4)); v != Inconclusive {
		t.Fatalf("BLSNPlus1 with undersized factor = %v, want Inconclusive", v)
	}
}

func TestPepinFermat2(t *testing.T) {
	// F_2 = 2^4+1 = 17, prime.
	n := big.NewInt(17)
	if v := Pepin(n); v != ProvenPrime {
		t.Fatalf("Pepin(17) = %v, want ProvenPrime", v)
	}
}

func TestPepinRejectsCompositeFermat(t *testing.T) {
	// F_5 = 2^32+1 = 4294967297 = 641 * 6700417, composite (Euler 1732).
	n := new(big.Int).SetUint64(4294967297)
	if v := Pepin(n); v != ProvenComposite {
		t.Fatalf("Pepin(F_5) = %v, want ProvenComposite", v)
	}
}

func TestMillerRabinScreensKnownComposite(t *testing.T) {
	n := big.NewInt(341) // smallest Fermat pseudoprime to base 2
	if v := MillerRabin(n, 20); v != ProvenComposite {
		t.Fatalf("MillerRabin(341) = %v, want ProvenComposite", v)
	}
}

func TestMillerRabinPassesKnownPrime(t *testing.T) {
	n := big.NewInt(7919)
	if v := MillerRabin(n, 20); v != Inconclusive {
		t.Fatalf("MillerRabin(7919) = %v, want Inconclusive (screen passed)", v)
	}
}

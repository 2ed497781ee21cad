package bigmath

import (
	"math/big"
	"testing"
)

func TestGeneratePrimes(t *testing.T) {
	got := GeneratePrimes(30)
	want := []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}
	if len(got) != len(want) {
		t.Fatalf("GeneratePrimes(30) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GeneratePrimes(30)[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if p := GeneratePrimes(1); p != nil {
		t.Fatalf("GeneratePrimes(1) = %v, want nil", p)
	}
}

func TestPowModAgainstBigExp(t *testing.T) {
	cases := []struct{ base, exp, m uint64 }{
		{2, 10, 1000},
		{3, 0, 7},
		{5, 117, 19},
		{7, 1 << 40, 1_000_003},
		{1 << 62, 3, (1 << 63) - 259}, // moduli near 2^63 exercise the wide multiply
	}
	for _, c := range cases {
		want := new(big.Int).Exp(
			new(big.Int).SetUint64(c.base),
			new(big.Int).SetUint64(c.exp),
			new(big.Int).SetUint64(c.m),
		).Uint64()
		if got := PowMod(c.base, c.exp, c.m); got != want {
			t.Errorf("PowMod(%d,%d,%d) = %d, want %d", c.base, c.exp, c.m, got, want)
		}
	}
}

func TestModInverse(t *testing.T) {
	for _, p := range []uint64{7, 101, 65537} {
		for a := uint64(1); a < 20; a++ {
			inv, ok := ModInverse(a, p)
			if a%p == 0 {
				// a is a multiple of p, so gcd(a,p) = p and no inverse exists.
				if ok {
					t.Fatalf("ModInverse(%d,%d) = %d, want no inverse for a multiple of p", a, p, inv)
				}
				continue
			}
			if !ok {
				t.Fatalf("ModInverse(%d,%d) reported no inverse", a, p)
			}
			if mulMod(a%p, inv, p) != 1 {
				t.Fatalf("ModInverse(%d,%d) = %d, product not 1", a, p, inv)
			}
		}
	}
	if _, ok := ModInverse(6, 9); ok {
		t.Fatal("expected no inverse for gcd(6,9) != 1")
	}
}

func TestMultiplicativeOrder(t *testing.T) {
	cases := []struct{ a, p, want uint64 }{
		{2, 7, 3},   // 2^3 = 8 === 1 (mod 7)
		{3, 7, 6},   // 3 is a primitive root mod 7
		{2, 11, 10}, // 2 is a primitive root mod 11
		{10, 13, 6}, // ord_13(10) = 6
		{2, 683, 22},
	}
	for _, c := range cases {
		if got := MultiplicativeOrder(c.a, c.p); got != c.want {
			t.Errorf("MultiplicativeOrder(%d,%d) = %d, want %d", c.a, c.p, got, c.want)
		}
	}
}

func TestDiscreteLogBSGS(t *testing.T) {
	p := uint64(101)
	b := uint64(2)
	ord := MultiplicativeOrder(b, p)
	for n := uint64(0); n < ord; n++ {
		target := PowMod(b, n, p)
		got, ok := DiscreteLogBSGS(b, target, p, ord)
		if !ok {
			t.Fatalf("DiscreteLogBSGS(%d,%d,%d,%d) found nothing, want %d", b, target, p, ord, n)
		}
		if PowMod(b, got, p) != target {
			t.Fatalf("DiscreteLogBSGS returned %d: %d^%d != %d (mod %d)", got, b, got, target, p)
		}
	}
	// 3 has order 3 mod 13 (3^3 = 27 === 1), so targets outside its
	// subgroup {1,3,9} have no solution.
	if _, ok := DiscreteLogBSGS(3, 2, 13, MultiplicativeOrder(3, 13)); ok {
		t.Fatal("expected no discrete log of 2 base 3 mod 13")
	}
}

func TestFactorialAndPrimorial(t *testing.T) {
	if got := FactorialBig(11); got.String() != "39916800" {
		t.Errorf("11! = %s, want 39916800", got)
	}
	primes := GeneratePrimes(11)
	if got := PrimorialBig(primes, 11); got.String() != "2310" {
		t.Errorf("11# = %s, want 2310", got)
	}
}

func TestPowBig(t *testing.T) {
	if got := PowBig(big.NewInt(2), 31); got.String() != "2147483648" {
		t.Errorf("2^31 = %s", got)
	}
	if got := PowBig(big.NewInt(10), 0); got.String() != "1" {
		t.Errorf("10^0 = %s", got)
	}
}

func TestResolveSieveLimit(t *testing.T) {
	if got := ResolveSieveLimit(12345, 0, 10); got != 12345 {
		t.Errorf("hint must win, got %d", got)
	}
	if got := ResolveSieveLimit(0, 0, 500); got != 10_000 {
		t.Errorf("narrow range limit = %d, want 10000", got)
	}
	if got := ResolveSieveLimit(0, 0, 50_000); got != 1_000_000 {
		t.Errorf("mid range limit = %d, want 1000000", got)
	}
}

package forms

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/darkreach/darkreach/internal/bigmath"
	"github.com/darkreach/darkreach/internal/proof"
)

// Verification tiers:
// 0 unverified, 1 re-run Miller-Rabin at a higher round count, 2 an
// independent deterministic re-proof.
const (
	TierUnverified    = 0
	TierRerunMR       = 1
	TierDeterministic = 2
)

// Verify re-derives the integer behind a stored expression and re-runs the
// primality pipeline at mrRounds, returning the verification tier achieved.
// It takes no stored digits count or proof_method; the returned digit
// count is recomputed from the reconstructed integer.
func Verify(form, expression string, mrRounds int) (tier int, digits int64, err error) {
	candidate, err := ReconstructExpression(form, expression)
	if err != nil {
		return TierUnverified, 0, err
	}

	if proof.MillerRabin(candidate, mrRounds) == proof.ProvenComposite {
		return TierUnverified, 0, fmt.Errorf("forms: verify: %q reconstructs to a composite", expression)
	}

	if attemptDeterministicReproof(form, candidate) {
		return TierDeterministic, digitCount(candidate), nil
	}
	return TierRerunMR, digitCount(candidate), nil
}

// attemptDeterministicReproof retries a form-appropriate deterministic
// kernel; it does not attempt to recover the original factor set. Only
// gen_fermat candidates are re-proved (via Pepin); every other form,
// including k=1 Proth-shaped kbn candidates, returns false.
func attemptDeterministicReproof(form string, candidate *big.Int) bool {
	switch form {
	case "gen_fermat":
		return proof.Pepin(candidate) == proof.ProvenPrime
	default:
		return false
	}
}

var (
	reFactorial          = regexp.MustCompile(`^(\d+)! ([+-]) 1$`)
	rePrimorial          = regexp.MustCompile(`^(\d+)# ([+-]) 1$`)
	reKBN                = regexp.MustCompile(`^(\d+)\*(\d+)\^(\d+) ([+-]) 1$`)
	reTwin               = regexp.MustCompile(`^(\d+)\*(\d+)\^(\d+) \+/- 1$`)
	reWagstaff           = regexp.MustCompile(`^\(2\^(\d+) \+ 1\)/3$`)
	reCarolKynea         = regexp.MustCompile(`^\(2\^(\d+) ([+-]) 1\)\^2 - 2$`)
	reRepunit            = regexp.MustCompile(`^R\((\d+), (\d+)\)$`)
	reGenFermat          = regexp.MustCompile(`^(\d+)\^\(2\^(\d+)\) \+ 1$`)
	reNearRepdigitSingle = regexp.MustCompile(`^10\^(\d+) - 1 - (\d+)\*10\^(\d+)$`)
	reNearRepdigitPaired = regexp.MustCompile(`^10\^(\d+) - 1 - (\d+)\*\(10\^(\d+) \+ 10\^(\d+)\)$`)
	rePalindrome         = regexp.MustCompile(`^\d+$`)
)

// ReconstructExpression rebuilds the integer behind a canonical expression
// string, the round-trip darkreach's
// verifier and tests both rely on.
func ReconstructExpression(form, expr string) (*big.Int, error) {
	switch form {
	case "factorial":
		m := reFactorial.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed factorial expression %q", expr)
		}
		n, _ := strconv.ParseUint(m[1], 10, 64)
		v := bigmath.FactorialBig(n)
		return applySign(v, m[2]), nil

	case "primorial":
		m := rePrimorial.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed primorial expression %q", expr)
		}
		p, _ := strconv.ParseUint(m[1], 10, 64)
		primes := bigmath.GeneratePrimes(p)
		v := bigmath.PrimorialBig(primes, p)
		return applySign(v, m[2]), nil

	case "kbn", "cullen_woodall", "sophie_germain":
		if m := reKBN.FindStringSubmatch(expr); m != nil {
			return kbnFromMatch(m[1], m[2], m[3], m[4])
		}
		return nil, fmt.Errorf("forms: malformed kbn-family expression %q", expr)

	case "twin":
		m := reTwin.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed twin expression %q", expr)
		}
		return kbnFromMatch(m[1], m[2], m[3], "-")

	case "wagstaff":
		m := reWagstaff.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed wagstaff expression %q", expr)
		}
		pExp, _ := strconv.ParseUint(m[1], 10, 64)
		numerator := addOne(bigmath.PowBig(big2local, pExp))
		return new(big.Int).Div(numerator, big.NewInt(3)), nil

	case "carol_kynea":
		m := reCarolKynea.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed carol/kynea expression %q", expr)
		}
		n, _ := strconv.ParseUint(m[1], 10, 64)
		twoN := bigmath.PowBig(big2local, n)
		base := applySign(twoN, m[2])
		v := new(big.Int).Mul(base, base)
		return v.Sub(v, big2local), nil

	case "repunit":
		m := reRepunit.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed repunit expression %q", expr)
		}
		base, _ := strconv.ParseUint(m[1], 10, 64)
		n, _ := strconv.ParseUint(m[2], 10, 64)
		bn := bigmath.PowBig(new(big.Int).SetUint64(base), n)
		return new(big.Int).Div(subOne(bn), new(big.Int).SetUint64(base-1)), nil

	case "gen_fermat":
		m := reGenFermat.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("forms: malformed gen_fermat expression %q", expr)
		}
		b, _ := strconv.ParseUint(m[1], 10, 64)
		n, _ := strconv.ParseUint(m[2], 10, 64)
		expVal := uint64(1) << n
		return addOne(bigmath.PowBig(new(big.Int).SetUint64(b), expVal)), nil

	case "near_repdigit":
		if m := reNearRepdigitSingle.FindStringSubmatch(expr); m != nil {
			dExp, _ := strconv.ParseUint(m[1], 10, 64)
			d, _ := strconv.ParseUint(m[2], 10, 64)
			p, _ := strconv.ParseUint(m[3], 10, 64)
			v := subOne(bigmath.PowBig(bigTen, dExp))
			v.Sub(v, bigmath.MulBig(new(big.Int).SetUint64(d), bigmath.PowBig(bigTen, p)))
			return v, nil
		}
		if m := reNearRepdigitPaired.FindStringSubmatch(expr); m != nil {
			dExp, _ := strconv.ParseUint(m[1], 10, 64)
			d, _ := strconv.ParseUint(m[2], 10, 64)
			a, _ := strconv.ParseUint(m[3], 10, 64)
			b, _ := strconv.ParseUint(m[4], 10, 64)
			dBig := new(big.Int).SetUint64(d)
			v := subOne(bigmath.PowBig(bigTen, dExp))
			v.Sub(v, bigmath.MulBig(dBig, bigmath.PowBig(bigTen, a)))
			v.Sub(v, bigmath.MulBig(dBig, bigmath.PowBig(bigTen, b)))
			return v, nil
		}
		return nil, fmt.Errorf("forms: malformed near_repdigit expression %q", expr)

	case "palindromic":
		if !rePalindrome.MatchString(expr) {
			return nil, fmt.Errorf("forms: malformed palindromic expression %q", expr)
		}
		v, ok := new(big.Int).SetString(expr, 10)
		if !ok {
			return nil, fmt.Errorf("forms: malformed palindromic expression %q", expr)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("forms: unknown form %q", form)
	}
}

func kbnFromMatch(kStr, baseStr, nStr, sign string) (*big.Int, error) {
	k, err := strconv.ParseUint(kStr, 10, 64)
	if err != nil {
		return nil, err
	}
	base, err := strconv.ParseUint(baseStr, 10, 64)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(nStr, 10, 64)
	if err != nil {
		return nil, err
	}
	bn := bigmath.PowBig(new(big.Int).SetUint64(base), n)
	val := bigmath.MulBig(new(big.Int).SetUint64(k), bn)
	return applySign(val, sign), nil
}

func applySign(v *big.Int, sign string) *big.Int {
	if sign == "-" {
		return subOne(v)
	}
	return addOne(v)
}

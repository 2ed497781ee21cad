package forms

// markProgression calls mark(n) for every n in [lo,hi) with n%modulus ==
// residue%modulus -- the primitive behind the sieves that eliminate an
// entire arithmetic progression per sieve prime: kbnSieve (shared by the
// kbn, twin and sophie_germain engines) and the Wagstaff sieve.
func markProgression(lo, hi, residue, modulus uint64, mark func(uint64)) {
	if modulus == 0 {
		return
	}
	r := residue % modulus
	rem := lo % modulus
	var n uint64
	if rem <= r {
		n = lo + (r - rem)
	} else {
		n = lo + (modulus - (rem - r))
	}
	for ; n < hi; n += modulus {
		mark(n)
	}
}

// markSingle calls mark(single) once if it falls within [lo,hi) -- used by
// sieve rules that eliminate exactly one n per sieve prime rather than a
// full progression (the repunit sieve's n=q and n=ord_q(b) cases).
func markSingle(lo, hi, single uint64, mark func(uint64)) {
	if single >= lo && single < hi {
		mark(single)
	}
}

// survivorSet is a boolean elimination bitmap over [lo,hi), the per-block
// sieve scope owned exclusively by one engine call.
type survivorSet struct {
	lo, hi     uint64
	eliminated []bool
}

func newSurvivorSet(lo, hi uint64) *survivorSet {
	if hi < lo {
		hi = lo
	}
	return &survivorSet{lo: lo, hi: hi, eliminated: make([]bool, hi-lo)}
}

func (s *survivorSet) Mark(n uint64) {
	if n >= s.lo && n < s.hi {
		s.eliminated[n-s.lo] = true
	}
}

func (s *survivorSet) Alive(n uint64) bool {
	if n < s.lo || n >= s.hi {
		return true
	}
	return !s.eliminated[n-s.lo]
}

package forms

import "testing"

func TestReconstructExpressionRoundTrips(t *testing.T) {
	cases := []struct {
		form, expr string
		want       string
	}{
		{"factorial", "11! + 1", "39916801"},
		{"factorial", "5! - 1", "119"},
		{"primorial", "5# + 1", "31"},
		{"kbn", "1*2^31 - 1", "2147483647"},
		{"wagstaff", "(2^11 + 1)/3", "683"},
		{"carol_kynea", "(2^7 - 1)^2 - 2", "16127"},
		{"repunit", "R(10, 2)", "11"},
		{"gen_fermat", "2^(2^2) + 1", "17"},
		{"palindromic", "929", "929"},
	}
	for _, c := range cases {
		got, err := ReconstructExpression(c.form, c.expr)
		if err != nil {
			t.Errorf("ReconstructExpression(%q, %q) error: %v", c.form, c.expr, err)
			continue
		}
		if got.String() != c.want {
			t.Errorf("ReconstructExpression(%q, %q) = %s, want %s", c.form, c.expr, got.String(), c.want)
		}
	}
}

func TestVerifyUpgradesGenFermatToDeterministic(t *testing.T) {
	tier, digits, err := Verify("gen_fermat", "2^(2^2) + 1", 20)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if tier != TierDeterministic {
		t.Errorf("tier = %d, want %d (deterministic)", tier, TierDeterministic)
	}
	if digits != 2 {
		t.Errorf("digits = %d, want 2 (17)", digits)
	}
}

func TestVerifyRejectsReconstructedComposite(t *testing.T) {
	// 5! + 1 = 121 = 11^2, not prime.
	if _, _, err := Verify("factorial", "5! + 1", 20); err == nil {
		t.Fatal("expected an error for a composite reconstruction, got nil")
	}
}

func TestVerifyFallsBackToRerunTierForKBN(t *testing.T) {
	tier, digits, err := Verify("kbn", "1*2^31 - 1", 20)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if tier != TierRerunMR {
		t.Errorf("tier = %d, want %d (rerun MR)", tier, TierRerunMR)
	}
	if digits != 10 {
		t.Errorf("digits = %d, want 10", digits)
	}
}

package forms

import (
	"context"
	"sync"
	"testing"
)

// fakeCoord captures reported primes without touching a store, for
// end-to-end engine tests run outside a live worker. Reports arrive from
// the engine's test pool, hence the lock.
type fakeCoord struct {
	mu      sync.Mutex
	reports []PrimeReport
	stop    bool
}

func (f *fakeCoord) IsStopRequested() bool { return f.stop }

func (f *fakeCoord) ReportPrime(ctx context.Context, r PrimeReport) error {
	f.mu.Lock()
	f.reports = append(f.reports, r)
	f.mu.Unlock()
	return nil
}

func newTestParams(rangeStart, rangeEnd, sieveLimit uint64, mrRounds int, extra map[string]any) (SearchParams, *fakeCoord) {
	coord := &fakeCoord{}
	params := SearchParams{
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		Progress:    &Progress{},
		ExtraParams: extra,
		MRRounds:    mrRounds,
		SieveLimit:  sieveLimit,
		Coord:       coord,
	}
	return params, coord
}

func findReport(reports []PrimeReport, expression string) (PrimeReport, bool) {
	for _, r := range reports {
		if r.Expression == expression {
			return r, true
		}
	}
	return PrimeReport{}, false
}

// TestFactorialFindsElevenFactorialPlusOne covers the factorial pipeline's
// canonical case: 11! + 1 = 39916801 is prime, proven via Pocklington N-1.
func TestFactorialFindsElevenFactorialPlusOne(t *testing.T) {
	params, coord := newTestParams(10, 12, 50, 20, nil)
	engine := FactorialEngine{}

	result, err := engine.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if result.Found == 0 {
		t.Fatalf("expected at least one prime found, got Result=%+v", result)
	}

	report, ok := findReport(coord.reports, "11! + 1")
	if !ok {
		t.Fatalf("expected a report for \"11! + 1\", got reports=%+v", coord.reports)
	}
	if report.ProofMethod != methodPocklington {
		t.Errorf("proof method = %q, want %q", report.ProofMethod, methodPocklington)
	}
	if report.Digits != 8 {
		t.Errorf("digits = %d, want 8 (39916801)", report.Digits)
	}
}

// TestKBNFindsMersenne31 covers the Mersenne special case of k*b^n-1 with
// k=1, base=2: 2^31-1 is prime, proven via LLR.
func TestKBNFindsMersenne31(t *testing.T) {
	extra := map[string]any{"k": uint64(1), "base": uint64(2)}
	params, coord := newTestParams(30, 32, 200, 20, extra)
	engine := KBNEngine{}

	result, err := engine.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if result.Found == 0 {
		t.Fatalf("expected at least one prime found, got Result=%+v", result)
	}

	report, ok := findReport(coord.reports, "1*2^31 - 1")
	if !ok {
		t.Fatalf("expected a report for \"1*2^31 - 1\", got reports=%+v", coord.reports)
	}
	if report.ProofMethod != methodLLR {
		t.Errorf("proof method = %q, want %q", report.ProofMethod, methodLLR)
	}
	if report.Digits != 10 {
		t.Errorf("digits = %d, want 10 (2147483647)", report.Digits)
	}
}

// TestWagstaffFinds683 covers exponent p=11: (2^11+1)/3 = 683 is prime.
func TestWagstaffFinds683(t *testing.T) {
	params, coord := newTestParams(3, 12, 50, 20, nil)
	engine := WagstaffEngine{}

	result, err := engine.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if result.Found == 0 {
		t.Fatalf("expected at least one prime found, got Result=%+v", result)
	}

	report, ok := findReport(coord.reports, "(2^11 + 1)/3")
	if !ok {
		t.Fatalf("expected a report for \"(2^11 + 1)/3\", got reports=%+v", coord.reports)
	}
	if report.ProofMethod != methodProbabilistic {
		t.Errorf("proof method = %q, want %q", report.ProofMethod, methodProbabilistic)
	}
	if report.Digits != 3 {
		t.Errorf("digits = %d, want 3 (683)", report.Digits)
	}
}

// TestRegistryCoversAllTwelveForms checks the dispatch table matches the
// canonical form set exactly, both directions.
func TestRegistryCoversAllTwelveForms(t *testing.T) {
	want := []string{
		"factorial", "primorial", "kbn", "palindromic", "near_repdigit",
		"cullen_woodall", "carol_kynea", "wagstaff", "twin",
		"sophie_germain", "repunit", "gen_fermat",
	}
	reg := Registry()
	if len(reg) != len(want) {
		t.Fatalf("Registry() has %d entries, want %d", len(reg), len(want))
	}
	for _, form := range want {
		engine, ok := reg[form]
		if !ok {
			t.Errorf("Registry() missing form %q", form)
			continue
		}
		if engine.Form() != form {
			t.Errorf("Registry()[%q].Form() = %q, want %q", form, engine.Form(), form)
		}
	}
}

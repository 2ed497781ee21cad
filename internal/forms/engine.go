// Package forms implements the twelve per-form search engines
// over a shared harness: resume from checkpoint, modular sieve, adaptive
// block testing, deterministic-proof-then-Miller-Rabin fallback, reporting,
// and cooperative stop. Each engine is a value satisfying the Engine
// capability set; dispatch is by the form's canonical string name.
package forms

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/darkreach/darkreach/internal/eventbus"
)

// CoordinationClient is the worker-side interface to the coordinator. A
// nil CoordinationClient is valid: engines run standalone in tests and in
// the end-to-end scenarios without a live worker runtime.
type CoordinationClient interface {
	IsStopRequested() bool
	ReportPrime(ctx context.Context, r PrimeReport) error
}

// PrimeReport is emitted for every confirmed prime.
type PrimeReport struct {
	Form         string
	Expression   string
	Digits       int64
	SearchParams map[string]any
	ProofMethod  string
	Verified     bool
}

// Progress holds the shared atomics a running engine exposes to its
// worker's heartbeat: Tested/Found are lock-free counters;
// Current and CurrentBlockID are mutex-guarded since they're read
// infrequently by the heartbeat loop rather than hot-looped.
type Progress struct {
	Tested atomic.Uint64
	Found  atomic.Uint64

	mu             sync.Mutex
	current        string
	currentBlockID *int64
}

// SetCurrent updates the human-readable status string.
func (p *Progress) SetCurrent(s string) {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()
}

// SetBlockID records which block is currently being worked.
func (p *Progress) SetBlockID(id int64) {
	p.mu.Lock()
	p.currentBlockID = &id
	p.mu.Unlock()
}

// Snapshot returns a consistent read of the mutex-guarded fields.
func (p *Progress) Snapshot() (current string, blockID *int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.currentBlockID
}

// SearchParams bundles everything an engine's Search call needs.
// ExtraParams carries the phase/job's search_params JSON, form-specific
// (e.g. {"k": 3, "base": 2} for kbn).
type SearchParams struct {
	RangeStart, RangeEnd uint64
	Progress             *Progress
	CheckpointPath       string
	ExtraParams          map[string]any
	MRRounds             int
	SieveLimit           uint64
	Coord                CoordinationClient
	Events               *eventbus.Bus
	Stop                 *atomic.Bool // shared cooperative-stop flag
	Workers              int          // CPU-bound pool size for the test phase, 0 = GOMAXPROCS
}

// Result summarizes one Search call for the caller's complete_work_block.
type Result struct {
	Tested uint64
	Found  uint64
}

// Engine is the capability set every form implements.
type Engine interface {
	// Form returns the canonical lowercase form name.
	Form() string
	// Search executes the shared 6-step shape over [params.RangeStart,
	// params.RangeEnd), consulting checkpoint resume, sieve, test,
	// report, and cooperative stop along the way.
	Search(ctx context.Context, p SearchParams) (Result, error)
}

// testPool bounds the CPU-bound test phase to a fixed number of concurrent
// candidate tests. Candidates never cross the pool boundary: each submitted
// closure owns its candidate value outright and drops it on return.
type testPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newTestPool(n int) *testPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &testPool{sem: make(chan struct{}, n)}
}

func (tp *testPool) submit(fn func()) {
	tp.wg.Add(1)
	tp.sem <- struct{}{}
	go func() {
		defer tp.wg.Done()
		fn()
		<-tp.sem
	}()
}

// wait blocks until every submitted test has finished; engines call it
// before checkpointing so a saved position never precedes an in-flight
// candidate.
func (tp *testPool) wait() {
	tp.wg.Wait()
}

func isStopRequested(p SearchParams) bool {
	if p.Stop != nil && p.Stop.Load() {
		return true
	}
	if p.Coord != nil && p.Coord.IsStopRequested() {
		return true
	}
	return false
}

func publishPrimeFound(p SearchParams, r PrimeReport) {
	if p.Events != nil {
		p.Events.Publish(eventbus.Event{Kind: "prime_found", Data: map[string]any{
			"form":         r.Form,
			"expression":   r.Expression,
			"digits":       r.Digits,
			"proof_method": r.ProofMethod,
		}})
	}
	if p.Coord != nil {
		_ = p.Coord.ReportPrime(context.Background(), r)
	}
}

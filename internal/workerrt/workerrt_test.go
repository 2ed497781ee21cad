package workerrt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/eventbus"
	"github.com/darkreach/darkreach/internal/store"
)

func TestRuntimeClaimsExecutesAndReportsWagstaffPrime(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	mgr := config.NewManager(config.Default())
	coord := coordinator.New(st, mgr, nil)

	jobID, err := coord.CreateJob("wagstaff", nil, 3, 12, 9, "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	rt := New(coord, eventbus.New(16), Options{
		WorkerID:       "test-worker",
		CheckpointDir:  t.TempDir(),
		MRRounds:       20,
		SieveLimit:     1000,
		HeartbeatEvery: 50 * time.Millisecond,
		EmptyQueueWait: 20 * time.Millisecond,
		Workers:        1,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- rt.Run(ctx, jobID, "wagstaff", nil)
	}()

	// Give the loop one pass to claim, execute, and exhaust the job's blocks,
	// then ask it to stop cooperatively.
	time.Sleep(500 * time.Millisecond)
	rt.RequestStop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("runtime did not stop in time")
	}

	summary, err := coord.JobSummary(jobID)
	if err != nil {
		t.Fatalf("job summary: %v", err)
	}
	if summary.Completed == 0 {
		t.Fatalf("expected at least one completed block, got summary %+v", summary)
	}

	rec, err := st.BestPrimeForForm("wagstaff")
	if err != nil {
		t.Fatalf("best prime: %v", err)
	}
	if rec == nil || rec.Expression != "(2^11 + 1)/3" {
		t.Fatalf("expected (2^11 + 1)/3 to be discovered, got %+v", rec)
	}

	if _, err := st.DB().Exec(`SELECT 1 FROM workers WHERE worker_id = ?`, rt.WorkerID()); err != nil {
		t.Fatalf("workers table query: %v", err)
	}
}

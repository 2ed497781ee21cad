package store

import (
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateJobPartitionsRangeExactly(t *testing.T) {
	s := newTestStore(t)
	jobID, err := s.CreateJob("kbn", map[string]any{"k": 3}, 100, 250, 50, 1)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	var blocks []Block
	for {
		b, err := s.ClaimBlock(jobID, "w1")
		if err == ErrNoBlockAvailable {
			break
		}
		if err != nil {
			t.Fatalf("claim block: %v", err)
		}
		blocks = append(blocks, *b)
	}

	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks for [100,250) at size 50, got %d", len(blocks))
	}
	if blocks[0].BlockStart != 100 || blocks[2].BlockEnd != 250 {
		t.Fatalf("blocks do not span [100,250): %+v", blocks)
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].BlockStart != blocks[i-1].BlockEnd {
			t.Fatalf("blocks overlap or gap between %+v and %+v", blocks[i-1], blocks[i])
		}
	}
}

func TestClaimBlockAtMostOnceConcurrent(t *testing.T) {
	s := newTestStore(t)
	jobID, err := s.CreateJob("kbn", nil, 0, 20, 1, 1)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	claimed := make(chan int64, 20)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				b, err := s.ClaimBlock(jobID, "w")
				if err == ErrNoBlockAvailable {
					return
				}
				if err != nil {
					t.Errorf("claim block: %v", err)
					return
				}
				claimed <- b.ID
			}
		}(i)
	}
	wg.Wait()
	close(claimed)

	seen := make(map[int64]bool)
	count := 0
	for id := range claimed {
		if seen[id] {
			t.Fatalf("block %d claimed more than once", id)
		}
		seen[id] = true
		count++
	}
	if count != 20 {
		t.Fatalf("expected 20 distinct claims, got %d", count)
	}
}

func TestCompleteBlockIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	jobID, err := s.CreateJob("kbn", nil, 0, 10, 10, 1)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	b, err := s.ClaimBlock(jobID, "w1")
	if err != nil {
		t.Fatalf("claim block: %v", err)
	}

	if err := s.CompleteBlock(b.ID, 10, 1); err != nil {
		t.Fatalf("complete block: %v", err)
	}
	if err := s.CompleteBlock(b.ID, 10, 1); err != nil {
		t.Fatalf("duplicate complete block: %v", err)
	}

	job, err := s.GetJob(jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.TotalTested != 10 || job.TotalFound != 1 {
		t.Fatalf("duplicate completion double-counted totals: %+v", job)
	}
}

func TestReclaimStaleReturnsCheckpointIntact(t *testing.T) {
	s := newTestStore(t)
	jobID, err := s.CreateJob("kbn", nil, 0, 10, 10, 1)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	b, err := s.ClaimBlock(jobID, "w1")
	if err != nil {
		t.Fatalf("claim block: %v", err)
	}
	if err := s.HeartbeatCheckpoint(b.ID, 4); err != nil {
		t.Fatalf("heartbeat checkpoint: %v", err)
	}

	if _, err := s.db.Exec(`UPDATE work_blocks SET claimed_at = datetime('now', '-1000 seconds') WHERE id = ?`, b.ID); err != nil {
		t.Fatalf("backdate claimed_at: %v", err)
	}

	n, err := s.ReclaimStale(120)
	if err != nil {
		t.Fatalf("reclaim stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reclaimed block, got %d", n)
	}

	reclaimed, err := s.ClaimBlock(jobID, "w2")
	if err != nil {
		t.Fatalf("claim reclaimed block: %v", err)
	}
	if reclaimed.ID != b.ID {
		t.Fatalf("expected to reclaim same block %d, got %d", b.ID, reclaimed.ID)
	}
	if reclaimed.BlockCheckpoint["last_tested"].(float64) != 4 {
		t.Fatalf("checkpoint not preserved across reclaim: %+v", reclaimed.BlockCheckpoint)
	}
}

func TestInsertPrimeUniqueOnFormExpression(t *testing.T) {
	s := newTestStore(t)
	rec := PrimeRecord{Form: "factorial", Expression: "11! + 1", Digits: 8, ProofMethod: "deterministic (Pocklington N-1)"}
	id1, err := s.InsertPrime(rec)
	if err != nil {
		t.Fatalf("insert prime: %v", err)
	}
	id2, err := s.InsertPrime(rec)
	if err != nil {
		t.Fatalf("insert duplicate prime: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("duplicate (form,expression) produced a second row: %d vs %d", id1, id2)
	}
}

func TestHeartbeatWorkerDeliversPendingCommandOnce(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.HeartbeatWorker(Worker{WorkerID: "w1", Hostname: "h1", Cores: 4}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := s.SetPendingCommand("w1", "stop"); err != nil {
		t.Fatalf("set pending command: %v", err)
	}
	cmd, err := s.HeartbeatWorker(Worker{WorkerID: "w1", Hostname: "h1", Cores: 4})
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if cmd != "stop" {
		t.Fatalf("expected pending command 'stop', got %q", cmd)
	}
	cmd, err = s.HeartbeatWorker(Worker{WorkerID: "w1", Hostname: "h1", Cores: 4})
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if cmd != "" {
		t.Fatalf("pending command should be one-shot, got %q again", cmd)
	}
}

package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/store"
)

func TestOrientScoresAllTwelveForms(t *testing.T) {
	cfg := config.Default()
	scores := Orient(WorldSnapshot{}, cfg)

	require.Len(t, scores, 12)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s.Score, 0.0, "form %s", s.Form)
		assert.LessOrEqual(t, s.Score, 1.0, "form %s", s.Form)
		for name, v := range s.Components {
			assert.GreaterOrEqual(t, v, 0.0, "form %s component %s", s.Form, name)
			assert.LessOrEqual(t, v, 1.0, "form %s component %s", s.Form, name)
		}
	}

	// Descending order.
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Score, scores[i].Score)
	}
}

func TestOrientExcludedFormScoresZero(t *testing.T) {
	cfg := config.Default()
	cfg.OODA.ExcludedForms = []string{"palindromic"}

	scores := Orient(WorldSnapshot{}, cfg)
	for _, s := range scores {
		if s.Form == "palindromic" {
			assert.Zero(t, s.Score)
			return
		}
	}
	t.Fatal("palindromic missing from scores")
}

func TestOrientPreferredFormBeatsIdenticalPeer(t *testing.T) {
	cfg := config.Default()
	cfg.OODA.PreferredForms = []string{"wagstaff"}

	scores := Orient(WorldSnapshot{}, cfg)
	byForm := make(map[string]float64, len(scores))
	for _, s := range scores {
		byForm[s.Form] = s.Score
	}
	// With an empty snapshot every form has identical components, so the
	// 1.5x preference multiplier must strictly separate wagstaff (up to the
	// composition cap at 1).
	require.Contains(t, byForm, "wagstaff")
	require.Contains(t, byForm, "repunit")
	if byForm["wagstaff"] < 1.0 {
		assert.Greater(t, byForm["wagstaff"], byForm["repunit"])
	}
}

func TestRecordGapScore(t *testing.T) {
	records := map[string]store.Record{
		"factorial": {Form: "factorial", Digits: 1000, OurBestDigits: 250},
		"kbn":       {Form: "kbn", Digits: 1000, OurBestDigits: 2000},
	}
	assert.InDelta(t, 0.75, recordGapScore("factorial", records), 1e-9)
	assert.Zero(t, recordGapScore("kbn", records))
	assert.Equal(t, 1.0, recordGapScore("wagstaff", records))
}

func TestComputeDriftWorkerAndBudgetDeltas(t *testing.T) {
	prev := WorldSnapshot{Fleet: Fleet{WorkerCount: 3}}
	cur := WorldSnapshot{Fleet: Fleet{WorkerCount: 5}}

	report := ComputeDrift(prev, cur, nil)
	assert.Equal(t, 2, report.NewWorkers)
	assert.Zero(t, report.LostWorkers)

	report = ComputeDrift(cur, prev, []store.StalledJob{{JobID: 7, SearchType: "twin"}})
	assert.Equal(t, 2, report.LostWorkers)
	require.Len(t, report.StalledJobs, 1)
	assert.Equal(t, int64(7), report.StalledJobs[0].JobID)
	assert.Equal(t, "twin", report.StalledJobs[0].Form)
}

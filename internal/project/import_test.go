package project

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/darkreach/darkreach/internal/config"
	"github.com/darkreach/darkreach/internal/store"
)

func TestImportAutoStrategyRecordProject(t *testing.T) {
	eng, _, st := newTestEngine(t)

	pf := &config.ProjectFile{
		Project: config.ProjectMeta{
			Name:      "Factorial Record Hunt",
			Objective: "record",
			Form:      "factorial",
		},
		Target: config.Target{TargetDigits: 100000, RangeStart: 1000, RangeEnd: 5000},
		Competitive: &config.Competitive{
			CurrentRecordExpression: "308084! + 1",
			CurrentRecordDigits:     1557176,
			CurrentRecordHolder:     "someone else",
		},
		Strategy: config.Strategy{AutoStrategy: true},
	}
	require.NoError(t, pf.Validate())

	id, err := eng.Import(pf)
	require.NoError(t, err)

	p, err := st.GetProject(id)
	require.NoError(t, err)
	require.Equal(t, "draft", p.Status)
	require.Equal(t, "factorial-record-hunt", p.Slug)

	// auto_strategy with objective=record generates sweep + extend, the
	// extend gated on the sweep finding nothing.
	phases, err := st.ListPhases(id)
	require.NoError(t, err)
	require.Len(t, phases, 2)
	require.Equal(t, "sweep", phases[0].Name)
	require.Equal(t, "extend", phases[1].Name)
	require.Equal(t, []string{"sweep"}, phases[1].DependsOn)
	require.Equal(t, "previous_phase_found_zero", phases[1].ActivationCondition)

	// The competitive table seeds the world-record row for the form.
	rec, err := st.GetRecord("factorial", "world")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, int64(1557176), rec.Digits)

	require.NoError(t, eng.Activate(id))
	p, err = st.GetProject(id)
	require.NoError(t, err)
	require.Equal(t, "active", p.Status)
}

func TestImportSurveyProjectGetsSingleSweep(t *testing.T) {
	eng, _, st := newTestEngine(t)

	pf := &config.ProjectFile{
		Project:  config.ProjectMeta{Name: "wagstaff survey", Objective: "survey", Form: "wagstaff"},
		Target:   config.Target{RangeStart: 3, RangeEnd: 10000},
		Strategy: config.Strategy{AutoStrategy: true},
	}
	require.NoError(t, pf.Validate())

	id, err := eng.Import(pf)
	require.NoError(t, err)

	phases, err := st.ListPhases(id)
	require.NoError(t, err)
	require.Len(t, phases, 1)
	require.Equal(t, "sweep", phases[0].Name)
	require.Equal(t, "all_blocks_done", phases[0].CompletionCondition)

	start, end, ok := rangeFromSearchParams(phases[0].SearchParams)
	require.True(t, ok)
	require.Equal(t, uint64(3), start)
	require.Equal(t, uint64(10000), end)
}

func TestValidateRejectsUnknownForm(t *testing.T) {
	pf := &config.ProjectFile{
		Project: config.ProjectMeta{Name: "bogus", Form: "mersenne_plus_plus"},
	}
	require.Error(t, pf.Validate())
}

func TestImportExplicitPhasesInheritTargetRange(t *testing.T) {
	eng, _, st := newTestEngine(t)

	pf := &config.ProjectFile{
		Project: config.ProjectMeta{Name: "twin explicit", Objective: "survey", Form: "twin"},
		Target:  config.Target{RangeStart: 100, RangeEnd: 200},
		Strategy: config.Strategy{
			Phases: []config.PhaseConfig{
				{Name: "narrow", SearchParams: map[string]any{"k": int64(3), "base": int64(2)}},
			},
		},
	}
	require.NoError(t, pf.Validate())

	id, err := eng.Import(pf)
	require.NoError(t, err)

	phases, err := st.ListPhases(id)
	require.NoError(t, err)
	require.Len(t, phases, 1)

	start, end, ok := rangeFromSearchParams(phases[0].SearchParams)
	require.True(t, ok)
	require.Equal(t, uint64(100), start)
	require.Equal(t, uint64(200), end)
	// JSON round-trip through the store turns numbers into float64.
	require.EqualValues(t, 3, phases[0].SearchParams["k"])
}

func TestStorePhaseRoundTrip(t *testing.T) {
	_, _, st := newTestEngine(t)

	id, err := st.CreateProject(store.Project{Slug: "rt", Name: "rt", Form: "kbn", Status: "draft"})
	require.NoError(t, err)

	_, err = st.CreatePhase(store.Phase{
		ProjectID:           id,
		Name:                "p1",
		Status:              "pending",
		SearchParams:        map[string]any{"range_start": uint64(1), "range_end": uint64(10)},
		DependsOn:           []string{"p0"},
		ActivationCondition: "previous_phase_found_prime",
		CompletionCondition: "first_prime_found",
	})
	require.NoError(t, err)

	ph, err := st.GetPhaseByName(id, "p1")
	require.NoError(t, err)
	require.NotNil(t, ph)
	require.Equal(t, []string{"p0"}, ph.DependsOn)
	require.Equal(t, "first_prime_found", ph.CompletionCondition)
}

// Package decision implements the coordinator's autonomous OODA loop:
// OBSERVE assembles a world snapshot, ORIENT scores the twelve forms and
// reports drift, DECIDE turns that into a gated decision list, ACT
// executes it, and LEARN periodically refits the cost model.
package decision

import (
	"fmt"
	"sync"
	"time"

	"github.com/darkreach/darkreach/internal/coordinator"
	"github.com/darkreach/darkreach/internal/project"
	"github.com/darkreach/darkreach/internal/store"
)

// Fleet is an alias of project.Fleet, the fleet aggregate that
// project.ComputeFleet builds from the workers table.
type Fleet = project.Fleet

// WorldSnapshot is OBSERVE's sole output: a point-in-time
// view of everything ORIENT and DECIDE need, gathered without side effects
// on the underlying store beyond project orchestration, which
// OBSERVE also drives.
type WorldSnapshot struct {
	Records           []store.Record
	Fleet             Fleet
	ActiveProjects    []store.Project
	ActiveJobs        []store.Job
	YieldRates        map[string]store.FormYield
	CostCalibrations  map[string]store.CostCalibration
	RecentDiscoveries []store.PrimeRecord
	MonthlyCostUSD    float64
	Timestamp         time.Time
}

// Observe gathers the WorldSnapshot via a parallel fan-out of independent
// store reads, then runs project
// orchestration before returning.
func Observe(coord *coordinator.Coordinator, projectEngine *project.Engine, recentWindow time.Duration) (WorldSnapshot, error) {
	st := coord.Store()
	var (
		wg                                          sync.WaitGroup
		records                                      []store.Record
		workers                                      []store.Worker
		activeProjects                               []store.Project
		activeJobs                                   []store.Job
		yields                                       []store.FormYield
		calibrations                                 []store.CostCalibration
		discoveries                                  []store.PrimeRecord
		errRecords, errWorkers, errProjects, errJobs error
		errYields, errCalibrations, errDiscoveries   error
	)

	wg.Add(7)
	go func() { defer wg.Done(); records, errRecords = st.ListRecords() }()
	go func() { defer wg.Done(); workers, errWorkers = st.ListWorkers() }()
	go func() { defer wg.Done(); activeProjects, errProjects = st.ListActiveProjects() }()
	go func() { defer wg.Done(); activeJobs, errJobs = st.ListRunningJobs() }()
	go func() { defer wg.Done(); yields, errYields = st.FormYieldStats() }()
	go func() { defer wg.Done(); calibrations, errCalibrations = st.ListCostCalibrations() }()
	go func() {
		defer wg.Done()
		discoveries, errDiscoveries = st.RecentDiscoveries(time.Now().Add(-recentWindow))
	}()
	wg.Wait()

	for _, err := range []error{errRecords, errWorkers, errProjects, errJobs, errYields, errCalibrations, errDiscoveries} {
		if err != nil {
			return WorldSnapshot{}, fmt.Errorf("decision: observe: %w", err)
		}
	}

	if projectEngine != nil {
		if err := projectEngine.Tick(); err != nil {
			return WorldSnapshot{}, fmt.Errorf("decision: observe: project tick: %w", err)
		}
		// Project orchestration may have activated jobs or rolled up totals;
		// re-read what DECIDE needs to see the fresh state.
		if activeProjects, errProjects = st.ListActiveProjects(); errProjects != nil {
			return WorldSnapshot{}, fmt.Errorf("decision: observe: re-list active projects: %w", errProjects)
		}
		if activeJobs, errJobs = st.ListRunningJobs(); errJobs != nil {
			return WorldSnapshot{}, fmt.Errorf("decision: observe: re-list active jobs: %w", errJobs)
		}
	}

	yieldByForm := make(map[string]store.FormYield, len(yields))
	for _, y := range yields {
		yieldByForm[y.Form] = y
	}
	calByForm := make(map[string]store.CostCalibration, len(calibrations))
	for _, c := range calibrations {
		calByForm[c.Form] = c
	}

	var monthlyCost float64
	for _, p := range activeProjects {
		monthlyCost += p.TotalCostUSD
	}

	return WorldSnapshot{
		Records:           records,
		Fleet:             project.ComputeFleet(workers),
		ActiveProjects:    activeProjects,
		ActiveJobs:        activeJobs,
		YieldRates:        yieldByForm,
		CostCalibrations:  calByForm,
		RecentDiscoveries: discoveries,
		MonthlyCostUSD:    monthlyCost,
		Timestamp:         time.Now(),
	}, nil
}

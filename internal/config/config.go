// Package config loads and validates darkreach's TOML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "30s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the coordinator-wide configuration, loaded from darkreach.toml.
type Config struct {
	General   General                 `toml:"general"`
	OODA      OODA                    `toml:"ooda"`
	CostModel map[string]CostDefaults `toml:"cost_model"`
	Quorum    map[string]int          `toml:"quorum_tiers"`
	Forms     map[string]FormLimits   `toml:"forms"`
}

// General holds process-wide timing and storage settings.
type General struct {
	StateDB             string   `toml:"state_db"`
	LogLevel            string   `toml:"log_level"`
	StaleClaimSeconds   int      `toml:"stale_claim_seconds"`
	ReclaimInterval     Duration `toml:"reclaim_interval"`
	HeartbeatInterval   Duration `toml:"heartbeat_interval"`
	HeartbeatStaleAfter Duration `toml:"heartbeat_stale_after"`
	CheckpointInterval  Duration `toml:"checkpoint_interval"`
	DefaultMRRounds     int      `toml:"default_mr_rounds"`
	DefaultSieveLimit   uint64   `toml:"default_sieve_limit"`
}

// OODA holds the decision engine's tick cadence, scoring weights, and policy knobs.
type OODA struct {
	TickInterval             Duration           `toml:"tick_interval"`
	OrchestrationInterval    Duration           `toml:"orchestration_interval"`
	LearnIntervalSecs        int                `toml:"learn_interval_secs"`
	MinCalibrationSamples    int                `toml:"min_calibration_samples"`
	MaxCalibrationMAPE       float64            `toml:"max_calibration_mape"`
	ScoringWeights           map[string]float64 `toml:"scoring_weights"`
	PreferredForms           []string           `toml:"preferred_forms"`
	ExcludedForms            []string           `toml:"excluded_forms"`
	MinIdleWorkersToCreate   int                `toml:"min_idle_workers_to_create"`
	MaxConcurrentProjects    int                `toml:"max_concurrent_projects"`
	MaxPerProjectBudgetUSD   float64            `toml:"max_per_project_budget_usd"`
	MinBudgetForProject      float64            `toml:"min_budget_for_project"`
	RecordProximityThreshold float64            `toml:"record_proximity_threshold"`
	MonthlyBudgetUSD         float64            `toml:"monthly_budget_usd"`
	BudgetAlertThresholdUSD  float64            `toml:"budget_alert_threshold_usd"`
}

// CostDefaults are the fallback cost-model coefficients for a form until LEARN fits real ones.
type CostDefaults struct {
	CoeffA             float64 `toml:"coeff_a"`
	CoeffB             float64 `toml:"coeff_b"`
	AcceleratorDivisor float64 `toml:"accelerator_divisor"`
}

// FormLimits carries per-form scoring/fleet-fit inputs that are not derived from runtime state.
type FormLimits struct {
	MinCores        int    `toml:"min_cores"`
	SearchableRange uint64 `toml:"searchable_range"`
	RecordDigits    int64  `toml:"record_digits"`
}

var defaultScoringWeights = map[string]float64{
	"record_gap":          0.20,
	"yield_rate":          0.15,
	"cost_efficiency":     0.20,
	"opportunity_density": 0.15,
	"fleet_fit":           0.10,
	"momentum":            0.10,
	"competition":         0.10,
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		General: General{
			StateDB:             "darkreach.db",
			LogLevel:            "info",
			StaleClaimSeconds:   120,
			ReclaimInterval:     Duration{2 * time.Minute},
			HeartbeatInterval:   Duration{12 * time.Second},
			HeartbeatStaleAfter: Duration{90 * time.Second},
			CheckpointInterval:  Duration{60 * time.Second},
			DefaultMRRounds:     20,
			DefaultSieveLimit:   1_000_000,
		},
		OODA: OODA{
			TickInterval:             Duration{30 * time.Second},
			OrchestrationInterval:    Duration{30 * time.Second},
			LearnIntervalSecs:        300,
			MinCalibrationSamples:    5,
			MaxCalibrationMAPE:       0.25,
			ScoringWeights:           cloneWeights(defaultScoringWeights),
			MinIdleWorkersToCreate:   1,
			MaxConcurrentProjects:    6,
			MaxPerProjectBudgetUSD:   50,
			MinBudgetForProject:      5,
			RecordProximityThreshold: 0.05,
			MonthlyBudgetUSD:         500,
			BudgetAlertThresholdUSD:  400,
		},
		CostModel: map[string]CostDefaults{},
		Quorum: map[string]int{
			"unverified": 3,
			"known":      2,
			"trusted":    1,
		},
		Forms: map[string]FormLimits{},
	}
}

// Clone returns a deep-enough copy of cfg so callers under RWMutexManager never share mutable maps.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.OODA.ScoringWeights = cloneWeights(c.OODA.ScoringWeights)
	clone.OODA.PreferredForms = append([]string(nil), c.OODA.PreferredForms...)
	clone.OODA.ExcludedForms = append([]string(nil), c.OODA.ExcludedForms...)
	clone.CostModel = make(map[string]CostDefaults, len(c.CostModel))
	for k, v := range c.CostModel {
		clone.CostModel[k] = v
	}
	clone.Quorum = make(map[string]int, len(c.Quorum))
	for k, v := range c.Quorum {
		clone.Quorum[k] = v
	}
	clone.Forms = make(map[string]FormLimits, len(c.Forms))
	for k, v := range c.Forms {
		clone.Forms[k] = v
	}
	return &clone
}

func cloneWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Load reads and validates a darkreach.toml file, filling in defaults for anything unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if len(cfg.OODA.ScoringWeights) == 0 {
		cfg.OODA.ScoringWeights = cloneWeights(defaultScoringWeights)
	}
	if err := NormalizeWeights(cfg.OODA.ScoringWeights); err != nil {
		cfg.OODA.ScoringWeights = cloneWeights(defaultScoringWeights)
	}
	return cfg, nil
}

// NormalizeWeights validates weights are within [0.05, 0.40] and rescales them to sum to 1.0.
// Invalid weight sets (any component outside range, or empty) return an error so the caller
// can fall back to the defaults.
func NormalizeWeights(w map[string]float64) error {
	if len(w) == 0 {
		return fmt.Errorf("config: empty scoring weights")
	}
	var sum float64
	for name, v := range w {
		if v < 0.05 || v > 0.40 {
			return fmt.Errorf("config: scoring weight %q=%f out of range [0.05,0.40]", name, v)
		}
		sum += v
	}
	if sum <= 0 {
		return fmt.Errorf("config: scoring weights sum to zero")
	}
	for name, v := range w {
		w[name] = v / sum
	}
	return nil
}

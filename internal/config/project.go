package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ValidForms lists the twelve form families recognised by darkreach.
// Unknown forms are rejected at project import. Cullen/Woodall
// and Carol/Kynea are each one form with a sign parameter in
// search_params ("cullen" vs "woodall", "carol" vs "kynea") rather than
// four separate forms.
var ValidForms = map[string]bool{
	"factorial":      true,
	"primorial":      true,
	"kbn":            true,
	"palindromic":    true,
	"near_repdigit":  true,
	"cullen_woodall": true,
	"carol_kynea":    true,
	"wagstaff":       true,
	"twin":           true,
	"sophie_germain": true,
	"repunit":        true,
	"gen_fermat":     true,
}

// ProjectFile is the per-project TOML configuration.
type ProjectFile struct {
	Project        ProjectMeta     `toml:"project"`
	Target         Target          `toml:"target"`
	Competitive    *Competitive    `toml:"competitive"`
	Strategy       Strategy        `toml:"strategy"`
	Infrastructure *Infrastructure `toml:"infrastructure"`
	Budget         *Budget         `toml:"budget"`
	Workers        *WorkersSection `toml:"workers"`
}

type ProjectMeta struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Objective   string   `toml:"objective"` // record, survey, verification, custom
	Form        string   `toml:"form"`
	Author      string   `toml:"author"`
	Tags        []string `toml:"tags"`
}

type Target struct {
	TargetDigits int64  `toml:"target_digits"`
	RangeStart   uint64 `toml:"range_start"`
	RangeEnd     uint64 `toml:"range_end"`
}

type Competitive struct {
	CurrentRecordExpression string   `toml:"current_record_expression"`
	CurrentRecordDigits     int64    `toml:"current_record_digits"`
	CurrentRecordHolder     string   `toml:"current_record_holder"`
	OEISSequence            string   `toml:"oeis_sequence"`
	ReferenceURLs           []string `toml:"reference_urls"`
}

type Strategy struct {
	AutoStrategy bool          `toml:"auto_strategy"`
	Phases       []PhaseConfig `toml:"phases"`
}

type PhaseConfig struct {
	Name                string         `toml:"name"`
	Description         string         `toml:"description"`
	SearchParams        map[string]any `toml:"search_params"`
	BlockSize           uint64         `toml:"block_size"`
	DependsOn           []string       `toml:"depends_on"`
	ActivationCondition string         `toml:"activation_condition"`
	Completion          string         `toml:"completion"`
}

type Infrastructure struct {
	MinRAMGB         int      `toml:"min_ram_gb"`
	MinCores         int      `toml:"min_cores"`
	RecommendedCores int      `toml:"recommended_cores"`
	RequiredTools    []string `toml:"required_tools"`
	PreferredTools   []string `toml:"preferred_tools"`
}

type Budget struct {
	MaxCostUSD              float64 `toml:"max_cost_usd"`
	CostAlertThresholdUSD   float64 `toml:"cost_alert_threshold_usd"`
	CloudRateUSDPerCoreHour float64 `toml:"cloud_rate_usd_per_core_hour"`
}

type WorkersSection struct {
	MinWorkers         int `toml:"min_workers"`
	MaxWorkers         int `toml:"max_workers"`
	RecommendedWorkers int `toml:"recommended_workers"`
}

// LoadProject reads and validates a per-project TOML file.
func LoadProject(path string) (*ProjectFile, error) {
	var pf ProjectFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("config: load project %s: %w", path, err)
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Validate enforces the form-name and range constraints at import time.
func (pf *ProjectFile) Validate() error {
	if pf.Project.Name == "" {
		return fmt.Errorf("config: project.name is required")
	}
	if !ValidForms[pf.Project.Form] {
		return fmt.Errorf("config: unknown form %q", pf.Project.Form)
	}
	switch pf.Project.Objective {
	case "record", "survey", "verification", "custom", "":
	default:
		return fmt.Errorf("config: unknown objective %q", pf.Project.Objective)
	}
	if pf.Target.RangeEnd != 0 && pf.Target.RangeEnd <= pf.Target.RangeStart {
		return fmt.Errorf("config: target.range_end must exceed range_start")
	}
	seen := make(map[string]bool, len(pf.Strategy.Phases))
	for _, p := range pf.Strategy.Phases {
		if p.Name == "" {
			return fmt.Errorf("config: phase with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate phase name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for _, p := range pf.Strategy.Phases {
		for _, dep := range p.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("config: phase %q depends on unknown phase %q", p.Name, dep)
			}
		}
	}
	return nil
}

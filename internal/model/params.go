package model

// CapacityMode selects how interview targets are limited by household counts.
type CapacityMode string

const (
	CapacityNone      CapacityMode = "none"
	CapacityCapped    CapacityMode = "capped"
	CapacityReduction CapacityMode = "reduction"
)

// Params holds the sampling design parameters for a run.
type Params struct {
	ConfidenceLevel      float64 `json:"confidence_level" yaml:"confidence_level"`
	MarginOfError        float64 `json:"margin_of_error" yaml:"margin_of_error"`
	DesignEffect         float64 `json:"design_effect" yaml:"design_effect"`
	InterviewsPerCluster int     `json:"interviews_per_cluster" yaml:"interviews_per_cluster"`
	ReservePercentage    float64 `json:"reserve_percentage" yaml:"reserve_percentage"`
	Probability          float64 `json:"probability" yaml:"probability"`

	// Seed makes the run reproducible. Nil means a fresh seed is generated
	// and reported in the result.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	CapacityMode    CapacityMode `json:"capacity_mode,omitempty" yaml:"capacity_mode,omitempty"`
	ReductionFactor float64      `json:"reduction_factor,omitempty" yaml:"reduction_factor,omitempty"`

	UseReplacements       bool    `json:"use_replacements,omitempty" yaml:"use_replacements,omitempty"`
	ReplacementPercentage float64 `json:"replacement_percentage,omitempty" yaml:"replacement_percentage,omitempty"`
}

// DefaultParams returns the field defaults used by the survey teams.
func DefaultParams() Params {
	return Params{
		ConfidenceLevel:       0.90,
		MarginOfError:         0.10,
		DesignEffect:          2.0,
		InterviewsPerCluster:  5,
		ReservePercentage:     0.10,
		Probability:           0.5,
		CapacityMode:          CapacityNone,
		ReductionFactor:       0.7,
		ReplacementPercentage: 0.10,
	}
}

// ConstraintsEnabled reports whether targets are corrected against capacity.
func (p Params) ConstraintsEnabled() bool {
	return p.CapacityMode == CapacityCapped || p.CapacityMode == CapacityReduction
}

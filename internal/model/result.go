package model

// ReplacementIssueKind classifies a stratum that cannot supply enough
// replacement PSUs.
type ReplacementIssueKind string

const (
	IssueNoAvailablePSUs  ReplacementIssueKind = "no_available_psus"
	IssueInsufficientPSUs ReplacementIssueKind = "insufficient_psus"
)

// ReplacementIssue is an advisory raised by the replacement pass.
type ReplacementIssue struct {
	Admin     string               `json:"admin" yaml:"admin"`
	Stratum   string               `json:"stratum" yaml:"stratum"`
	Issue     ReplacementIssueKind `json:"issue" yaml:"issue"`
	Available int                  `json:"available" yaml:"available"`
	Required  int                  `json:"required" yaml:"required"`
}

// ReplacementPlan describes how the replacement pass was sized.
type ReplacementPlan struct {
	PrimarySelected  int                `json:"primary_selected" yaml:"primary_selected"`
	Count            int                `json:"count" yaml:"count"`
	TargetInterviews int                `json:"target_interviews" yaml:"target_interviews"`
	ScalingFactor    float64            `json:"scaling_factor" yaml:"scaling_factor"`
	CandidatePool    int                `json:"candidate_pool" yaml:"candidate_pool"`
	Strata           []Stratum          `json:"strata" yaml:"strata"`
	Issues           []ReplacementIssue `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// StratumSummary is the per-stratum row of the output.
type StratumSummary struct {
	Stratum
	Coverage              float64              `json:"coverage"`
	SelectedSites         int                  `json:"selected_sites"`
	PrimaryInterviews     int                  `json:"primary_interviews"`
	ReplacementInterviews int                  `json:"replacement_interviews"`
	FinalInterviews       int                  `json:"final_interviews"`
	Redistribution        *RedistributionStats `json:"redistribution,omitempty"`
}

// Totals aggregates a run across all strata.
type Totals struct {
	TotalSites            int     `json:"total_sites" yaml:"total_sites"`
	TotalStrata           int     `json:"total_strata" yaml:"total_strata"`
	TotalAdmins           int     `json:"total_admins" yaml:"total_admins"`
	TotalPopulation       int     `json:"total_population" yaml:"total_population"`
	SelectedSites         int     `json:"selected_sites" yaml:"selected_sites"`
	Sample                int     `json:"sample" yaml:"sample"`
	SampleWithReserve     int     `json:"sample_with_reserve" yaml:"sample_with_reserve"`
	Clusters              int     `json:"clusters" yaml:"clusters"`
	PrimaryInterviews     int     `json:"primary_interviews" yaml:"primary_interviews"`
	ReplacementInterviews int     `json:"replacement_interviews" yaml:"replacement_interviews"`
	TotalInterviews       int     `json:"total_interviews" yaml:"total_interviews"`
	CoveragePct           float64 `json:"coverage_pct" yaml:"coverage_pct"`
	ConstrainedClusters   int     `json:"constrained_clusters" yaml:"constrained_clusters"`
	InterviewsLost        int     `json:"interviews_lost" yaml:"interviews_lost"`
	TargetMean            float64 `json:"target_mean" yaml:"target_mean"`
	TargetMedian          float64 `json:"target_median" yaml:"target_median"`
	TargetMax             float64 `json:"target_max" yaml:"target_max"`
}

// Result is the complete output of a sampling run.
type Result struct {
	Seed        uint64               `json:"seed"`
	Params      Params               `json:"params"`
	Strata      []StratumSummary     `json:"strata"`
	Allocations []Allocation         `json:"allocations"`
	Replacement *ReplacementPlan     `json:"replacement,omitempty"`
	Capacity    *RedistributionStats `json:"capacity,omitempty"`
	Totals      Totals               `json:"totals"`
	Warnings    []Warning            `json:"warnings"`
}

// Selected returns the allocations with at least one selection or a
// non-zero final target.
func (r *Result) Selected() []Allocation {
	var out []Allocation
	for _, a := range r.Allocations {
		if a.Selections > 0 || a.Target > 0 {
			out = append(out, a)
		}
	}
	return out
}

package model

import "fmt"

// WarningCode classifies a non-fatal condition raised during a run.
type WarningCode string

const (
	WarnNonNumericHouseholds WarningCode = "non_numeric_households"
	WarnNegativeHouseholds   WarningCode = "negative_households"
	WarnFractionalHouseholds WarningCode = "fractional_households"
	WarnHouseholdsTooLarge   WarningCode = "households_too_large"
	WarnDuplicateUniqueID    WarningCode = "duplicate_unique_id"
	WarnEmptyStratum         WarningCode = "empty_stratum"
	WarnDegenerateBounds     WarningCode = "degenerate_bounds"
	WarnNoAvailablePSUs      WarningCode = "no_available_psus"
	WarnInsufficientPSUs     WarningCode = "insufficient_psus"
	WarnOverCapacity         WarningCode = "over_capacity"
	WarnInterviewsLost       WarningCode = "interviews_lost"
)

// Warning is a human-readable, non-fatal message surfaced with a result.
type Warning struct {
	Stage   string      `json:"stage" csv:"stage"`
	Code    WarningCode `json:"code" csv:"code"`
	Admin   string      `json:"admin,omitempty" csv:"admin"`
	Stratum string      `json:"stratum,omitempty" csv:"stratum"`
	Message string      `json:"message" csv:"message"`
}

func (w Warning) String() string {
	if w.Admin == "" && w.Stratum == "" {
		return fmt.Sprintf("[%s] %s", w.Code, w.Message)
	}
	return fmt.Sprintf("[%s] %s/%s: %s", w.Code, w.Admin, w.Stratum, w.Message)
}

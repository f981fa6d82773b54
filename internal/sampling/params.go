package sampling

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-sampler/internal/model"
)

// ErrInvalidParams is returned when a design parameter is out of range.
var ErrInvalidParams = errors.New("invalid sampling parameters")

// ErrEmptyInput is returned when a run has no sites to sample from.
var ErrEmptyInput = errors.New("no sites to sample")

// ValidateParams checks every parameter against its accepted range.
func ValidateParams(p model.Params) error {
	switch {
	case p.ConfidenceLevel < 0.80 || p.ConfidenceLevel > 0.99:
		return eris.Wrapf(ErrInvalidParams, "confidence level %.4g must be between 0.80 and 0.99", p.ConfidenceLevel)
	case p.MarginOfError < 0.01 || p.MarginOfError > 0.20:
		return eris.Wrapf(ErrInvalidParams, "margin of error %.4g must be between 0.01 and 0.20", p.MarginOfError)
	case p.DesignEffect < 1 || p.DesignEffect > 5:
		return eris.Wrapf(ErrInvalidParams, "design effect %.4g must be between 1.0 and 5.0", p.DesignEffect)
	case p.InterviewsPerCluster < 1 || p.InterviewsPerCluster > 50:
		return eris.Wrapf(ErrInvalidParams, "interviews per cluster %d must be between 1 and 50", p.InterviewsPerCluster)
	case p.ReservePercentage < 0 || p.ReservePercentage > 0.5:
		return eris.Wrapf(ErrInvalidParams, "reserve percentage %.4g must be between 0 and 0.5", p.ReservePercentage)
	case p.Probability <= 0 || p.Probability >= 1:
		return eris.Wrapf(ErrInvalidParams, "probability %.4g must be strictly between 0 and 1", p.Probability)
	}

	switch p.CapacityMode {
	case "", model.CapacityNone, model.CapacityCapped:
	case model.CapacityReduction:
		if p.ReductionFactor <= 0 || p.ReductionFactor > 1 {
			return eris.Wrapf(ErrInvalidParams, "reduction factor %.4g must be in (0, 1]", p.ReductionFactor)
		}
	default:
		return eris.Wrapf(ErrInvalidParams, "unknown capacity mode %q", p.CapacityMode)
	}

	if p.UseReplacements && (p.ReplacementPercentage <= 0 || p.ReplacementPercentage >= 1) {
		return eris.Wrapf(ErrInvalidParams, "replacement percentage %.4g must be strictly between 0 and 1", p.ReplacementPercentage)
	}
	return nil
}

// ParseCapacityMode maps user input onto a CapacityMode. Both the short
// names and the labels shown on the field team forms are accepted.
func ParseCapacityMode(s string) (model.CapacityMode, error) {
	switch s {
	case "", "none", "None":
		return model.CapacityNone, nil
	case "capped", "Capped":
		return model.CapacityCapped, nil
	case "reduction", "reduction_factor", "Reduction Factor":
		return model.CapacityReduction, nil
	}
	return "", eris.Wrapf(ErrInvalidParams, "unknown capacity mode %q", s)
}

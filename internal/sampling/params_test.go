package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-sampler/internal/model"
)

func TestValidateParams_Defaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateParams(model.DefaultParams()))
}

func TestValidateParams_OutOfRange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*model.Params)
	}{
		{"confidence low", func(p *model.Params) { p.ConfidenceLevel = 0.5 }},
		{"confidence high", func(p *model.Params) { p.ConfidenceLevel = 0.999 }},
		{"margin low", func(p *model.Params) { p.MarginOfError = 0.001 }},
		{"margin high", func(p *model.Params) { p.MarginOfError = 0.3 }},
		{"design effect", func(p *model.Params) { p.DesignEffect = 0.5 }},
		{"interviews zero", func(p *model.Params) { p.InterviewsPerCluster = 0 }},
		{"interviews high", func(p *model.Params) { p.InterviewsPerCluster = 51 }},
		{"reserve", func(p *model.Params) { p.ReservePercentage = 0.6 }},
		{"probability zero", func(p *model.Params) { p.Probability = 0 }},
		{"probability one", func(p *model.Params) { p.Probability = 1 }},
		{"unknown mode", func(p *model.Params) { p.CapacityMode = "squeeze" }},
		{"reduction zero", func(p *model.Params) {
			p.CapacityMode = model.CapacityReduction
			p.ReductionFactor = 0
		}},
		{"reduction above one", func(p *model.Params) {
			p.CapacityMode = model.CapacityReduction
			p.ReductionFactor = 1.2
		}},
		{"replacement zero", func(p *model.Params) {
			p.UseReplacements = true
			p.ReplacementPercentage = 0
		}},
		{"replacement one", func(p *model.Params) {
			p.UseReplacements = true
			p.ReplacementPercentage = 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.DefaultParams()
			tt.mutate(&p)
			err := ValidateParams(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestValidateParams_ReplacementIgnoredWhenDisabled(t *testing.T) {
	t.Parallel()
	p := model.DefaultParams()
	p.ReplacementPercentage = 0
	assert.NoError(t, ValidateParams(p))
}

func TestParseCapacityMode(t *testing.T) {
	t.Parallel()
	tests := map[string]model.CapacityMode{
		"":                 model.CapacityNone,
		"None":             model.CapacityNone,
		"capped":           model.CapacityCapped,
		"Capped":           model.CapacityCapped,
		"reduction":        model.CapacityReduction,
		"Reduction Factor": model.CapacityReduction,
	}
	for in, want := range tests {
		got, err := ParseCapacityMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCapacityMode("halved")
	assert.ErrorIs(t, err, ErrInvalidParams)
}

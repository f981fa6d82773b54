package sampling

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/survey-sampler/internal/model"
)

// ChiSquareCritical returns the chi-square quantile with one degree of
// freedom at the given confidence level (2.706 at 0.90, 3.841 at 0.95).
func ChiSquareCritical(confidence float64) float64 {
	return distuv.ChiSquared{K: 1}.Quantile(confidence)
}

// CalculateSample returns the required sample size for a population using
// Cochran's formula with finite population correction, inflated by the
// design effect and rounded up. A population of zero or less needs no
// sample; any positive population gets at least one.
func CalculateSample(population int, p model.Params) (int, error) {
	if population <= 0 {
		return 0, nil
	}

	chi := ChiSquareCritical(p.ConfidenceLevel)
	pq := p.Probability * (1 - p.Probability)

	numerator := chi * float64(population) * pq
	denominator := p.MarginOfError*p.MarginOfError*float64(population-1) + chi*pq
	if denominator <= 0 || math.IsNaN(denominator) {
		return 0, eris.Errorf("sampling: sample size undefined for population %d", population)
	}

	sample := int(math.Ceil(numerator / denominator * p.DesignEffect))
	if sample < 1 {
		sample = 1
	}
	return sample, nil
}

// ceilEpsilon absorbs binary representation error before rounding up, so
// 10 * 1.1 gives 11 rather than 12.
const ceilEpsilon = 1e-9

// SampleWithReserve inflates a sample by the reserve percentage, rounding up.
func SampleWithReserve(sample int, reserve float64) int {
	if sample <= 0 {
		return 0
	}
	return int(math.Ceil(float64(sample)*(1+reserve) - ceilEpsilon))
}

// ClustersFor returns the number of clusters needed to cover n interviews.
func ClustersFor(n, interviewsPerCluster int) int {
	if n <= 0 || interviewsPerCluster <= 0 {
		return 0
	}
	return (n + interviewsPerCluster - 1) / interviewsPerCluster
}

// SizeStratum fills in the sample, reserve and cluster counts of a stratum.
func SizeStratum(st *model.Stratum, p model.Params) error {
	sample, err := CalculateSample(st.Population, p)
	if err != nil {
		return eris.Wrapf(err, "sampling: size stratum %s", st.Name)
	}
	st.Sample = sample
	st.SampleWithReserve = SampleWithReserve(sample, p.ReservePercentage)
	st.Clusters = ClustersFor(st.SampleWithReserve, p.InterviewsPerCluster)
	return nil
}

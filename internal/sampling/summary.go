package sampling

import (
	"github.com/montanaflynn/stats"

	"github.com/sells-group/survey-sampler/internal/model"
)

// Summarize builds the per-stratum rows and run totals from the sized strata
// and the final allocations. redistribution may be nil when no constraints
// were applied.
func Summarize(strata []model.Stratum, allocs []model.Allocation, redistribution map[model.StratumKey]*model.RedistributionStats) ([]model.StratumSummary, model.Totals) {
	rows := make([]model.StratumSummary, len(strata))
	index := make(map[model.StratumKey]int, len(strata))
	admins := make(map[string]bool)

	var totals model.Totals
	for i, st := range strata {
		rows[i] = model.StratumSummary{Stratum: st, Coverage: percent(st.Sample, st.Population)}
		if r, ok := redistribution[st.Key()]; ok {
			rows[i].Redistribution = r
		}
		index[st.Key()] = i
		admins[st.Admin] = true

		totals.TotalSites += st.Sites
		totals.TotalPopulation += st.Population
		totals.Sample += st.Sample
		totals.SampleWithReserve += st.SampleWithReserve
		totals.Clusters += st.Clusters
	}
	totals.TotalStrata = len(strata)
	totals.TotalAdmins = len(admins)
	totals.CoveragePct = percent(totals.Sample, totals.TotalPopulation)

	var targets stats.Float64Data
	for _, a := range allocs {
		if a.IsConstrained {
			totals.ConstrainedClusters++
		}
		if a.Selections == 0 && a.Target == 0 {
			continue
		}
		targets = append(targets, float64(a.Target))
		totals.SelectedSites++

		i, ok := index[a.Key()]
		if !ok {
			continue
		}
		row := &rows[i]
		row.SelectedSites++
		row.FinalInterviews += a.Target
		switch a.PSUType {
		case model.PSUPrimary:
			row.PrimaryInterviews += a.Target
			totals.PrimaryInterviews += a.Target
		case model.PSUReplacement:
			row.ReplacementInterviews += a.Target
			totals.ReplacementInterviews += a.Target
		}
		totals.TotalInterviews += a.Target
	}

	for _, r := range redistribution {
		totals.InterviewsLost += r.InterviewsLost
	}

	if len(targets) > 0 {
		totals.TargetMean, _ = targets.Mean()
		totals.TargetMedian, _ = targets.Median()
		totals.TargetMax, _ = targets.Max()
	}
	return rows, totals
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

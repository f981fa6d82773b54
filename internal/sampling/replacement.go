package sampling

import (
	"fmt"
	"math"

	"github.com/sells-group/survey-sampler/internal/model"
)

const stageReplacement = "replacement"

// ReplacementPass is the output of GenerateReplacements.
type ReplacementPass struct {
	Plan       model.ReplacementPlan
	Selections []model.Selection
}

// PlanReplacements sizes the replacement pass. Sites already selected in the
// primary pass are excluded from the candidate pool by unique ID. The target
// volume is ceil(selected primary sites * fraction) clusters; each stratum's
// sample with reserve is scaled to approximate it, rounded up and kept at 1
// or more for strata that had a sample at all.
func PlanReplacements(sites []model.Site, strata []model.Stratum, primary []model.Selection, fraction float64, interviewsPerCluster int) (model.ReplacementPlan, []model.Site) {
	selected := make(map[string]bool)
	for _, s := range primary {
		if s.Selections > 0 {
			selected[s.UniqueID] = true
		}
	}

	pool := make([]model.Site, 0, len(sites))
	for _, s := range sites {
		if !selected[s.UniqueID] {
			pool = append(pool, s)
		}
	}

	count := int(math.Ceil(float64(len(selected))*fraction - ceilEpsilon))
	plan := model.ReplacementPlan{
		PrimarySelected:  len(selected),
		Count:            count,
		TargetInterviews: count * interviewsPerCluster,
		CandidatePool:    len(pool),
	}

	originalTotal := 0
	for _, st := range strata {
		originalTotal += st.SampleWithReserve
	}
	if originalTotal > 0 {
		plan.ScalingFactor = float64(plan.TargetInterviews) / float64(originalTotal)
	}

	available := make(map[model.StratumKey]int)
	for _, s := range pool {
		available[s.Key()]++
	}

	plan.Strata = make([]model.Stratum, len(strata))
	for i, st := range strata {
		scaled := st
		scaled.SampleWithReserve = scaleAtLeastOne(st.SampleWithReserve, plan.ScalingFactor)
		scaled.Sample = scaleAtLeastOne(st.Sample, plan.ScalingFactor)
		scaled.Clusters = ClustersFor(scaled.SampleWithReserve, interviewsPerCluster)
		plan.Strata[i] = scaled

		required := int(math.Ceil(float64(st.Clusters)*fraction - ceilEpsilon))
		n := available[st.Key()]
		switch {
		case n == 0:
			plan.Issues = append(plan.Issues, model.ReplacementIssue{
				Admin: st.Admin, Stratum: st.Stratum,
				Issue: model.IssueNoAvailablePSUs, Available: 0, Required: required,
			})
		case n < required:
			plan.Issues = append(plan.Issues, model.ReplacementIssue{
				Admin: st.Admin, Stratum: st.Stratum,
				Issue: model.IssueInsufficientPSUs, Available: n, Required: required,
			})
		}
	}
	return plan, pool
}

func scaleAtLeastOne(v int, factor float64) int {
	if v <= 0 {
		return 0
	}
	scaled := int(math.Ceil(float64(v)*factor - ceilEpsilon))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// GenerateReplacements runs a second PPS pass over the sites not selected in
// the primary pass. Strata without candidates are skipped; shortages are
// reported as advisory issues and warnings, never as errors.
func GenerateReplacements(sites []model.Site, strata []model.Stratum, primary []model.Selection, fraction float64, interviewsPerCluster int, rng Rand) (*ReplacementPass, []model.Warning) {
	plan, pool := PlanReplacements(sites, strata, primary, fraction, interviewsPerCluster)

	var warnings []model.Warning
	for _, is := range plan.Issues {
		code := model.WarnInsufficientPSUs
		msg := fmt.Sprintf("only %d candidate sites for %d replacement clusters", is.Available, is.Required)
		if is.Issue == model.IssueNoAvailablePSUs {
			code = model.WarnNoAvailablePSUs
			msg = "no candidate sites left for replacement"
		}
		warnings = append(warnings, model.Warning{
			Stage: stageReplacement, Code: code, Admin: is.Admin, Stratum: is.Stratum, Message: msg,
		})
	}

	groups := groupSites(pool)
	pass := &ReplacementPass{Plan: plan}
	for _, st := range plan.Strata {
		candidates := groups[st.Key()]
		if len(candidates) == 0 {
			continue
		}
		sel, w := SelectClusters(st.Key(), candidates, st.Clusters, interviewsPerCluster, rng)
		for i := range sel {
			sel[i].PSUType = model.PSUReplacement
		}
		pass.Selections = append(pass.Selections, sel...)
		warnings = append(warnings, w...)
	}
	return pass, warnings
}

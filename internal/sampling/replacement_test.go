package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-sampler/internal/model"
)

func replacementFixture() ([]model.Site, []model.Stratum, []model.Selection) {
	sites := []model.Site{
		{UniqueID: "a1", Admin: "North", Stratum: "Rural", Households: 30},
		{UniqueID: "a2", Admin: "North", Stratum: "Rural", Households: 20},
		{UniqueID: "a3", Admin: "North", Stratum: "Rural", Households: 10},
		{UniqueID: "b1", Admin: "South", Stratum: "Urban", Households: 80},
		{UniqueID: "c1", Admin: "South", Stratum: "Camp", Households: 0},
	}
	strata := []model.Stratum{
		{Admin: "North", Stratum: "Rural", Name: "Rural_North", Sample: 10, SampleWithReserve: 11, Clusters: 3},
		{Admin: "South", Stratum: "Camp", Name: "Camp_South"},
		{Admin: "South", Stratum: "Urban", Name: "Urban_South", Sample: 20, SampleWithReserve: 22, Clusters: 5},
	}
	primary := []model.Selection{
		{Site: sites[0], Selections: 1},
		{Site: sites[1], Selections: 2},
		{Site: sites[2]},
		{Site: sites[4]},
		{Site: sites[3], Selections: 1},
	}
	return sites, strata, primary
}

func TestPlanReplacements(t *testing.T) {
	t.Parallel()
	sites, strata, primary := replacementFixture()
	plan, pool := PlanReplacements(sites, strata, primary, 0.5, 5)

	assert.Equal(t, 3, plan.PrimarySelected)
	assert.Equal(t, 2, plan.Count)
	assert.Equal(t, 10, plan.TargetInterviews)
	assert.InDelta(t, 10.0/33.0, plan.ScalingFactor, 1e-12)
	assert.Equal(t, 2, plan.CandidatePool)

	ids := []string{}
	for _, s := range pool {
		ids = append(ids, s.UniqueID)
	}
	assert.Equal(t, []string{"a3", "c1"}, ids)

	require.Len(t, plan.Strata, 3)
	assert.Equal(t, 4, plan.Strata[0].SampleWithReserve)
	assert.Equal(t, 4, plan.Strata[0].Sample)
	assert.Equal(t, 1, plan.Strata[0].Clusters)
	assert.Zero(t, plan.Strata[1].SampleWithReserve, "empty strata are not floored to 1")
	assert.Equal(t, 7, plan.Strata[2].SampleWithReserve)
	assert.Equal(t, 2, plan.Strata[2].Clusters)

	assert.Equal(t, []model.ReplacementIssue{
		{Admin: "North", Stratum: "Rural", Issue: model.IssueInsufficientPSUs, Available: 1, Required: 2},
		{Admin: "South", Stratum: "Urban", Issue: model.IssueNoAvailablePSUs, Available: 0, Required: 3},
	}, plan.Issues)

	// Originals untouched.
	assert.Equal(t, 11, strata[0].SampleWithReserve)
}

func TestPlanReplacements_FloorOfOne(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "x", Admin: "A", Stratum: "S", Households: 5},
		{UniqueID: "y", Admin: "A", Stratum: "S", Households: 5},
	}
	strata := []model.Stratum{{Admin: "A", Stratum: "S", Sample: 300, SampleWithReserve: 330, Clusters: 66}}
	primary := []model.Selection{{Site: sites[0], Selections: 1}, {Site: sites[1]}}

	plan, _ := PlanReplacements(sites, strata, primary, 0.1, 1)
	assert.Equal(t, 1, plan.Count)
	assert.Equal(t, 1, plan.Strata[0].SampleWithReserve)
	assert.Equal(t, 1, plan.Strata[0].Sample)
}

func TestGenerateReplacements(t *testing.T) {
	t.Parallel()
	sites, strata, primary := replacementFixture()
	pass, warnings := GenerateReplacements(sites, strata, primary, 0.5, 5, NewRand(3))

	require.Len(t, warnings, 2)
	assert.Equal(t, model.WarnInsufficientPSUs, warnings[0].Code)
	assert.Equal(t, model.WarnNoAvailablePSUs, warnings[1].Code)

	selected := map[string]int{}
	for _, s := range pass.Selections {
		assert.Equal(t, model.PSUReplacement, s.PSUType)
		selected[s.UniqueID] = s.Selections
	}
	assert.Equal(t, 1, selected["a3"])
	assert.Zero(t, selected["c1"])
	assert.NotContains(t, selected, "a1")
	assert.NotContains(t, selected, "b1")
}

func TestGenerateReplacements_DisjointFromPrimary(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(400, 11)
	p := model.DefaultParams()
	strata, _ := AggregateStrata(sites)
	for i := range strata {
		require.NoError(t, SizeStratum(&strata[i], p))
	}

	rng := NewRand(11)
	groups := groupSites(sites)
	var primary []model.Selection
	for _, st := range strata {
		sel, _ := SelectClusters(st.Key(), groups[st.Key()], st.Clusters, p.InterviewsPerCluster, rng)
		primary = append(primary, sel...)
	}

	pass, _ := GenerateReplacements(sites, strata, primary, 0.3, p.InterviewsPerCluster, rng)
	chosen := map[string]bool{}
	for _, s := range primary {
		if s.Selections > 0 {
			chosen[s.UniqueID] = true
		}
	}
	require.NotEmpty(t, chosen)
	replaced := 0
	for _, s := range pass.Selections {
		if s.Selections > 0 {
			replaced++
			assert.False(t, chosen[s.UniqueID], "site %s selected twice", s.UniqueID)
		}
	}
	assert.Positive(t, replaced)
}

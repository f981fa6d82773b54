package sampling

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-sampler/internal/model"
)

// syntheticSites builds a deterministic site list over four admin areas and
// three categories.
func syntheticSites(n int, seed uint64) []model.Site {
	rng := NewRand(seed)
	admins := []string{"East", "North", "South", "West"}
	strata := []string{"Camp", "Rural", "Urban"}
	sites := make([]model.Site, n)
	for i := range sites {
		sites[i] = model.Site{
			UniqueID:   fmt.Sprintf("U%04d", i),
			SiteID:     fmt.Sprintf("S%04d", i),
			Name:       fmt.Sprintf("Site %d", i),
			Admin:      admins[rng.IntN(len(admins))],
			Stratum:    strata[rng.IntN(len(strata))],
			Households: rng.IntN(120),
		}
	}
	return sites
}

func seeded(p model.Params, seed uint64) model.Params {
	p.Seed = &seed
	return p
}

func TestRun_EmptyInput(t *testing.T) {
	t.Parallel()
	_, err := Run(nil, model.DefaultParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRun_InvalidParams(t *testing.T) {
	t.Parallel()
	p := model.DefaultParams()
	p.MarginOfError = 0.5
	_, err := Run(syntheticSites(10, 1), p)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestRun_Basic(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(300, 5)
	res, err := Run(sites, seeded(model.DefaultParams(), 5))
	require.NoError(t, err)

	assert.Equal(t, uint64(5), res.Seed)
	assert.Len(t, res.Allocations, len(sites))
	assert.Equal(t, len(sites), res.Totals.TotalSites)
	assert.Equal(t, 12, res.Totals.TotalStrata)
	assert.Equal(t, 4, res.Totals.TotalAdmins)
	assert.Nil(t, res.Replacement)
	assert.Nil(t, res.Capacity)

	for i, st := range res.Strata {
		if i > 0 {
			assert.True(t, res.Strata[i-1].Key().Less(st.Key()))
		}
		if st.Population > 0 {
			assert.GreaterOrEqual(t, st.Sample, 1)
		}
		// Draws are conserved per stratum.
		selections := 0
		for _, a := range res.Allocations {
			if a.Key() == st.Key() {
				selections += a.Selections
			}
		}
		assert.Equal(t, st.Clusters, selections, st.Name)
	}

	for _, a := range res.Allocations {
		assert.NotEmpty(t, a.UniqueID)
		assert.Equal(t, a.Selections*5, a.OriginalTarget)
		if a.Selections > 0 {
			assert.Equal(t, model.PSUPrimary, a.PSUType)
		} else {
			assert.Equal(t, model.PSUNotSelected, a.PSUType)
		}
	}
	assert.Equal(t, res.Totals.PrimaryInterviews, res.Totals.TotalInterviews)
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(50, 2)
	before := make([]model.Site, len(sites))
	copy(before, sites)

	_, err := Run(sites, seeded(model.DefaultParams(), 2))
	require.NoError(t, err)
	assert.Equal(t, before, sites)
}

func TestRun_SameSeedIdenticalOutput(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(500, 9)
	p := model.DefaultParams()
	p.UseReplacements = true
	p.CapacityMode = model.CapacityReduction

	a, err := Run(sites, seeded(p, 77))
	require.NoError(t, err)
	b, err := Run(sites, seeded(p, 77))
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))

	c, err := Run(sites, seeded(p, 78))
	require.NoError(t, err)
	jc, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotEqual(t, string(ja), string(jc))
}

func TestRun_GeneratedSeedReplays(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(200, 4)
	first, err := Run(sites, model.DefaultParams())
	require.NoError(t, err)
	require.NotNil(t, first.Params.Seed)
	assert.Equal(t, first.Seed, *first.Params.Seed)

	replay, err := Run(sites, seeded(model.DefaultParams(), first.Seed))
	require.NoError(t, err)
	assert.Equal(t, first.Allocations, replay.Allocations)
}

func TestRun_WithReplacements(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(600, 12)
	p := model.DefaultParams()
	p.UseReplacements = true
	p.ReplacementPercentage = 0.2

	res, err := Run(sites, seeded(p, 12))
	require.NoError(t, err)
	require.NotNil(t, res.Replacement)

	primary, replacement := 0, 0
	for _, a := range res.Allocations {
		switch a.PSUType {
		case model.PSUPrimary:
			primary++
		case model.PSUReplacement:
			replacement++
			assert.Positive(t, a.Selections)
		}
	}
	assert.Equal(t, res.Replacement.PrimarySelected, primary)
	assert.Positive(t, replacement)
	assert.Equal(t, res.Totals.PrimaryInterviews+res.Totals.ReplacementInterviews, res.Totals.TotalInterviews)
}

func TestRun_CapacityConservation(t *testing.T) {
	t.Parallel()
	sites := syntheticSites(150, 21)
	for _, mode := range []model.CapacityMode{model.CapacityCapped, model.CapacityReduction} {
		p := model.DefaultParams()
		p.CapacityMode = mode
		p.InterviewsPerCluster = 20

		res, err := Run(sites, seeded(p, 21))
		require.NoError(t, err)
		require.NotNil(t, res.Capacity)

		original, final := 0, 0
		for _, a := range res.Allocations {
			original += a.OriginalTarget
			final += a.Target
			assert.LessOrEqual(t, a.Target, a.EffectiveLimit, "%s %s", mode, a.UniqueID)
		}
		assert.Equal(t, original-res.Capacity.InterviewsLost, final, mode)
		assert.Equal(t, res.Capacity.InterviewsLost, res.Totals.InterviewsLost)
		assert.Equal(t, final, res.Totals.TotalInterviews)
	}
}

func TestRun_ModeNoneReportsOverCapacity(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "a", Admin: "North", Stratum: "Rural", Households: 2},
		{UniqueID: "b", Admin: "North", Stratum: "Rural", Households: 3},
	}
	res, err := Run(sites, seeded(model.DefaultParams(), 1))
	require.NoError(t, err)
	assert.Nil(t, res.Capacity)

	var codes []model.WarningCode
	for _, w := range res.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, model.WarnOverCapacity)
	for _, a := range res.Allocations {
		assert.Equal(t, a.OriginalTarget, a.Target)
	}
}

func TestRun_ZeroPopulationStratum(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "a", Admin: "North", Stratum: "Empty"},
		{UniqueID: "b", Admin: "North", Stratum: "Rural", Households: 40},
	}
	res, err := Run(sites, seeded(model.DefaultParams(), 1))
	require.NoError(t, err)

	require.Len(t, res.Strata, 2)
	assert.Equal(t, "Empty_North", res.Strata[0].Name)
	assert.Zero(t, res.Strata[0].Sample)
	assert.Zero(t, res.Strata[0].Clusters)
	assert.Zero(t, res.Allocations[0].Selections)
}

func TestRun_HouseholdsTooLarge(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "a", Admin: "North", Stratum: "Rural", Households: 5e18},
		{UniqueID: "b", Admin: "North", Stratum: "Rural", Households: 5e18},
		{UniqueID: "c", Admin: "North", Stratum: "Rural", Households: 80},
	}
	res, err := Run(sites, seeded(model.DefaultParams(), 3))
	require.NoError(t, err)

	require.Len(t, res.Strata, 1)
	assert.Equal(t, 80, res.Strata[0].Population)
	assert.Equal(t, 80, res.Totals.TotalPopulation)
	for _, a := range res.Allocations {
		assert.GreaterOrEqual(t, a.Households, 0)
		assert.GreaterOrEqual(t, a.Selections, 0)
		if a.UniqueID != "c" {
			assert.Zero(t, a.Selections, a.UniqueID)
		}
	}

	var tooLarge int
	for _, w := range res.Warnings {
		if w.Code == model.WarnHouseholdsTooLarge {
			tooLarge++
		}
	}
	assert.Equal(t, 2, tooLarge)
}

func TestAssignUniqueIDs(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{Name: "one"},
		{UniqueID: "K1", Name: "two"},
		{UniqueID: "K1", Name: "three"},
	}
	out, warnings := assignUniqueIDs(sites)
	assert.Equal(t, "UID_1", out[0].UniqueID)
	assert.Equal(t, "K1", out[1].UniqueID)
	assert.Equal(t, "K1#3", out[2].UniqueID)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnDuplicateUniqueID, warnings[0].Code)
	assert.Empty(t, sites[0].UniqueID)
}

func TestCombineSelections(t *testing.T) {
	t.Parallel()
	site := func(id string) model.Site { return model.Site{UniqueID: id, Admin: "N", Stratum: "R"} }
	primary := []model.Selection{
		{Site: site("p"), Selections: 2, Target: 10},
		{Site: site("r")},
		{Site: site("n")},
	}
	replacements := []model.Selection{
		{Site: site("r"), Selections: 1, Target: 5, PSUType: model.PSUReplacement},
		{Site: site("n"), PSUType: model.PSUReplacement},
	}

	got := CombineSelections(primary, replacements)
	require.Len(t, got, 3)
	assert.Equal(t, model.PSUPrimary, got[0].PSUType)
	assert.Equal(t, 10, got[0].OriginalTarget)
	assert.Equal(t, model.PSUReplacement, got[1].PSUType)
	assert.Equal(t, 5, got[1].Target)
	assert.Equal(t, model.PSUNotSelected, got[2].PSUType)
	assert.Zero(t, got[2].Target)
}

func TestStratumSpans(t *testing.T) {
	t.Parallel()
	a := func(admin string) model.Allocation {
		return model.Allocation{Site: model.Site{Admin: admin, Stratum: "R"}}
	}
	spans := stratumSpans([]model.Allocation{a("E"), a("E"), a("N"), a("W"), a("W")})
	require.Len(t, spans, 3)
	assert.Equal(t, span{key: model.StratumKey{Admin: "E", Stratum: "R"}, start: 0, end: 2}, spans[0])
	assert.Equal(t, 2, spans[1].start)
	assert.Equal(t, 5, spans[2].end)
}

package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-sampler/internal/model"
)

func TestAggregateStrata(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "1", Admin: "South", Stratum: "Urban", Households: 40},
		{UniqueID: "2", Admin: "North", Stratum: "Rural", Households: 10},
		{UniqueID: "3", Admin: "North", Stratum: "Rural", Households: 15},
		{UniqueID: "4", Admin: "North", Stratum: "Camp", Households: 0},
		{UniqueID: "5", Admin: "South", Stratum: "Urban", Households: 5},
	}

	strata, warnings := AggregateStrata(sites)
	assert.Empty(t, warnings)
	require.Len(t, strata, 3)

	assert.Equal(t, "Camp_North", strata[0].Name)
	assert.Equal(t, 1, strata[0].Sites)
	assert.Equal(t, 0, strata[0].Population)

	assert.Equal(t, "Rural_North", strata[1].Name)
	assert.Equal(t, 2, strata[1].Sites)
	assert.Equal(t, 25, strata[1].Population)

	assert.Equal(t, "Urban_South", strata[2].Name)
	assert.Equal(t, 45, strata[2].Population)
}

func TestAggregateStrata_NegativeHouseholds(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "1", Admin: "North", Stratum: "Rural", Households: -3},
		{UniqueID: "2", Admin: "North", Stratum: "Rural", Households: 7},
	}

	strata, warnings := AggregateStrata(sites)
	require.Len(t, strata, 1)
	assert.Equal(t, 7, strata[0].Population)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnNegativeHouseholds, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "site 1")
}

func TestAggregateStrata_HouseholdsTooLarge(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "1", Admin: "North", Stratum: "Rural", Households: 5e18},
		{UniqueID: "2", Admin: "North", Stratum: "Rural", Households: 5e18},
		{UniqueID: "3", Admin: "North", Stratum: "Rural", Households: 12},
	}

	strata, warnings := AggregateStrata(sites)
	require.Len(t, strata, 1)
	assert.Equal(t, 3, strata[0].Sites)
	assert.Equal(t, 12, strata[0].Population)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, model.WarnHouseholdsTooLarge, w.Code)
		assert.Equal(t, "aggregate", w.Stage)
	}
	assert.Contains(t, warnings[1].Message, "site 2")
}

func TestAggregateStrata_SameCategoryAcrossAdmins(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "1", Admin: "East", Stratum: "Rural", Households: 1},
		{UniqueID: "2", Admin: "West", Stratum: "Rural", Households: 2},
	}
	strata, _ := AggregateStrata(sites)
	require.Len(t, strata, 2)
	assert.Equal(t, "Rural_East", strata[0].Name)
	assert.Equal(t, "Rural_West", strata[1].Name)
}

func TestGroupSites_PreservesOrder(t *testing.T) {
	t.Parallel()
	sites := []model.Site{
		{UniqueID: "a", Admin: "N", Stratum: "R", Households: 1},
		{UniqueID: "b", Admin: "S", Stratum: "R", Households: 2},
		{UniqueID: "c", Admin: "N", Stratum: "R", Households: -1},
	}
	groups := groupSites(sites)
	got := groups[model.StratumKey{Admin: "N", Stratum: "R"}]
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].UniqueID)
	assert.Equal(t, "c", got[1].UniqueID)
	assert.Equal(t, 0, got[1].Households)
	assert.Equal(t, -1, sites[2].Households)
}

func TestGroupSites_ClampsHouseholdsTooLarge(t *testing.T) {
	t.Parallel()
	sites := []model.Site{{UniqueID: "a", Admin: "N", Stratum: "R", Households: model.MaxHouseholds + 1}}
	got := groupSites(sites)[model.StratumKey{Admin: "N", Stratum: "R"}]
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Households)
}

package sampling

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/survey-sampler/internal/model"
)

const stageAggregate = "aggregate"

// AggregateStrata groups sites by (admin, stratum) and sums their households.
// Negative or out-of-range household counts are treated as zero and reported,
// as is a site whose households would overflow its stratum total. The returned
// strata are sorted by admin area, then stratum label; sample sizes are not
// filled in.
func AggregateStrata(sites []model.Site) ([]model.Stratum, []model.Warning) {
	var warnings []model.Warning
	index := make(map[model.StratumKey]int)
	var strata []model.Stratum

	for _, s := range sites {
		hh := s.Households
		switch {
		case hh < 0:
			warnings = append(warnings, model.Warning{
				Stage:   stageAggregate,
				Code:    model.WarnNegativeHouseholds,
				Admin:   s.Admin,
				Stratum: s.Stratum,
				Message: fmt.Sprintf("site %s has negative households (%d); treated as 0", s.UniqueID, hh),
			})
			hh = 0
		case hh > model.MaxHouseholds:
			warnings = append(warnings, model.Warning{
				Stage:   stageAggregate,
				Code:    model.WarnHouseholdsTooLarge,
				Admin:   s.Admin,
				Stratum: s.Stratum,
				Message: fmt.Sprintf("site %s has %d households, above %d; treated as 0", s.UniqueID, hh, model.MaxHouseholds),
			})
			hh = 0
		}

		key := s.Key()
		i, ok := index[key]
		if !ok {
			i = len(strata)
			index[key] = i
			strata = append(strata, model.Stratum{
				Admin:   key.Admin,
				Stratum: key.Stratum,
				Name:    key.Name(),
			})
		}
		strata[i].Sites++
		if strata[i].Population > math.MaxInt-hh {
			warnings = append(warnings, model.Warning{
				Stage:   stageAggregate,
				Code:    model.WarnHouseholdsTooLarge,
				Admin:   s.Admin,
				Stratum: s.Stratum,
				Message: fmt.Sprintf("stratum %s population overflows; site %s not counted", key.Name(), s.UniqueID),
			})
			continue
		}
		strata[i].Population += hh
	}

	sort.SliceStable(strata, func(i, j int) bool {
		return strata[i].Key().Less(strata[j].Key())
	})
	return strata, warnings
}

// groupSites partitions sites by stratum key, preserving input order inside
// each group. Unusable household counts are clamped to zero.
func groupSites(sites []model.Site) map[model.StratumKey][]model.Site {
	groups := make(map[model.StratumKey][]model.Site)
	for _, s := range sites {
		s.Households = model.UsableHouseholds(s.Households)
		groups[s.Key()] = append(groups[s.Key()], s)
	}
	return groups
}

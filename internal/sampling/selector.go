package sampling

import (
	"fmt"
	"sort"

	"github.com/sells-group/survey-sampler/internal/model"
)

const stageSelect = "select"

// Rand is the random source used for PPS draws. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

// BuildIntervals orders sites by descending household count (ties keep input
// order) and assigns each the closed interval [LowerBound, Cumulative] of
// household positions it owns. Sites with no households get an empty interval
// (LowerBound = Cumulative + 1). The non-empty intervals partition [1, total].
func BuildIntervals(stratumName string, sites []model.Site) []model.Selection {
	sel := make([]model.Selection, len(sites))
	for i, s := range sites {
		s.Households = model.UsableHouseholds(s.Households)
		sel[i] = model.Selection{Site: s, StratumName: stratumName}
	}
	sort.SliceStable(sel, func(i, j int) bool {
		return sel[i].Households > sel[j].Households
	})

	cum := 0
	for i := range sel {
		cum += sel[i].Households
		sel[i].Cumulative = cum
		sel[i].LowerBound = cum - sel[i].Households + 1
	}
	return sel
}

// SelectClusters performs `draws` PPS draws over the sites of one stratum and
// returns every site with its selection count and interview target.
//
// An empty pool yields no selections and a warning. When the stratum has no
// households at all the draws cannot be placed proportionally; all of them go
// to the first site and a warning is raised.
func SelectClusters(key model.StratumKey, sites []model.Site, draws, interviewsPerCluster int, rng Rand) ([]model.Selection, []model.Warning) {
	if len(sites) == 0 {
		return nil, []model.Warning{{
			Stage:   stageSelect,
			Code:    model.WarnEmptyStratum,
			Admin:   key.Admin,
			Stratum: key.Stratum,
			Message: "no sites found for stratum; skipped",
		}}
	}

	sel := BuildIntervals(key.Name(), sites)
	if draws <= 0 {
		return sel, nil
	}

	total := sel[len(sel)-1].Cumulative
	var warnings []model.Warning

	if total <= 0 {
		warnings = append(warnings, model.Warning{
			Stage:   stageSelect,
			Code:    model.WarnDegenerateBounds,
			Admin:   key.Admin,
			Stratum: key.Stratum,
			Message: fmt.Sprintf("stratum has no households; all %d draws assigned to site %s", draws, sel[0].UniqueID),
		})
		sel[0].Selections = draws
	} else {
		for d := 0; d < draws; d++ {
			r := rng.IntN(total) + 1
			sel[locate(sel, r)].Selections++
		}
	}

	for i := range sel {
		sel[i].Target = sel[i].Selections * interviewsPerCluster
	}
	return sel, warnings
}

// locate returns the index of the site whose interval contains position r.
// Empty intervals are skipped because their Cumulative equals the previous
// site's.
func locate(sel []model.Selection, r int) int {
	return sort.Search(len(sel), func(i int) bool {
		return sel[i].Cumulative >= r
	})
}

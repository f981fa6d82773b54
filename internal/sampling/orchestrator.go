package sampling

import (
	"fmt"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-sampler/internal/model"
)

const stageIngest = "ingest"

// NewRand returns the generator used for a run. The same seed always yields
// the same sequence of draws.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Run executes the full sampling pipeline: aggregate strata, size them,
// select primary clusters, optionally select replacements, combine the
// passes per site, apply capacity constraints and summarise. Invalid
// parameters and empty input are fatal; everything else is reported as a
// warning on the result.
func Run(sites []model.Site, p model.Params) (*model.Result, error) {
	if p.CapacityMode == "" {
		p.CapacityMode = model.CapacityNone
	}
	if err := ValidateParams(p); err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "sampling: run")
	}

	var seed uint64
	if p.Seed != nil {
		seed = *p.Seed
	} else {
		seed = rand.Uint64()
		p.Seed = &seed
	}
	rng := NewRand(seed)

	res := &model.Result{Seed: seed, Params: p}

	sites, w := assignUniqueIDs(sites)
	res.Warnings = append(res.Warnings, w...)

	strata, w := AggregateStrata(sites)
	res.Warnings = append(res.Warnings, w...)
	for i := range strata {
		if err := SizeStratum(&strata[i], p); err != nil {
			return nil, err
		}
	}

	groups := groupSites(sites)
	var primary []model.Selection
	for _, st := range strata {
		sel, w := SelectClusters(st.Key(), groups[st.Key()], st.Clusters, p.InterviewsPerCluster, rng)
		for i := range sel {
			if sel[i].Selections > 0 {
				sel[i].PSUType = model.PSUPrimary
			}
		}
		primary = append(primary, sel...)
		res.Warnings = append(res.Warnings, w...)
	}

	var replacements []model.Selection
	if p.UseReplacements {
		pass, w := GenerateReplacements(sites, strata, primary, p.ReplacementPercentage, p.InterviewsPerCluster, rng)
		res.Replacement = &pass.Plan
		replacements = pass.Selections
		res.Warnings = append(res.Warnings, w...)
	}

	res.Allocations = CombineSelections(primary, replacements)

	perStratum := make(map[model.StratumKey]*model.RedistributionStats)
	if p.ConstraintsEnabled() {
		res.Capacity = &model.RedistributionStats{}
	}
	for _, span := range stratumSpans(res.Allocations) {
		allocs := res.Allocations[span.start:span.end]
		stats, w := ApplyConstraints(span.key, allocs, p.CapacityMode, p.ReductionFactor)
		res.Warnings = append(res.Warnings, w...)
		if p.ConstraintsEnabled() {
			perStratum[span.key] = &stats
			res.Capacity.Add(stats)
		}
	}

	res.Strata, res.Totals = Summarize(strata, res.Allocations, perStratum)

	logRun(res)
	return res, nil
}

// CombineSelections merges the primary and replacement passes into one
// allocation per site. Sites keep the primary pass order (strata sorted,
// sites by descending households). A site can only be picked by one pass
// because replacement candidates exclude primary selections.
func CombineSelections(primary, replacements []model.Selection) []model.Allocation {
	repl := make(map[string]model.Selection, len(replacements))
	for _, r := range replacements {
		if r.Selections > 0 {
			repl[r.UniqueID] = r
		}
	}

	out := make([]model.Allocation, 0, len(primary))
	for _, s := range primary {
		a := model.Allocation{
			Site:        s.Site,
			StratumName: s.StratumName,
			PSUType:     model.PSUNotSelected,
		}
		switch r, ok := repl[s.UniqueID]; {
		case s.Selections > 0:
			a.PSUType = model.PSUPrimary
			a.Selections = s.Selections
			a.Target = s.Target
		case ok:
			a.PSUType = model.PSUReplacement
			a.Selections = r.Selections
			a.Target = r.Target
		}
		a.OriginalTarget = a.Target
		out = append(out, a)
	}
	return out
}

type span struct {
	key        model.StratumKey
	start, end int
}

// stratumSpans returns the contiguous ranges of allocations sharing a stratum.
func stratumSpans(allocs []model.Allocation) []span {
	var out []span
	for i, a := range allocs {
		if len(out) == 0 || out[len(out)-1].key != a.Key() {
			out = append(out, span{key: a.Key(), start: i})
		}
		out[len(out)-1].end = i + 1
	}
	return out
}

// assignUniqueIDs gives every site without a unique ID the identifier
// UID_<n>, n being its 1-based input position, and reports duplicates.
// The input slice is not modified.
func assignUniqueIDs(sites []model.Site) ([]model.Site, []model.Warning) {
	out := make([]model.Site, len(sites))
	copy(out, sites)

	var warnings []model.Warning
	seen := make(map[string]bool, len(out))
	for i := range out {
		if out[i].UniqueID == "" {
			out[i].UniqueID = fmt.Sprintf("UID_%d", i+1)
		}
		for seen[out[i].UniqueID] {
			dup := out[i].UniqueID
			out[i].UniqueID = fmt.Sprintf("%s#%d", dup, i+1)
			warnings = append(warnings, model.Warning{
				Stage:   stageIngest,
				Code:    model.WarnDuplicateUniqueID,
				Admin:   out[i].Admin,
				Stratum: out[i].Stratum,
				Message: fmt.Sprintf("duplicate unique id %s on row %d; renamed to %s", dup, i+1, out[i].UniqueID),
			})
		}
		seen[out[i].UniqueID] = true
	}
	return out, warnings
}

func logRun(res *model.Result) {
	log := zap.L().With(zap.Uint64("seed", res.Seed))
	log.Info("sampling: run complete",
		zap.Int("strata", res.Totals.TotalStrata),
		zap.Int("sites", res.Totals.TotalSites),
		zap.Int("selected", res.Totals.SelectedSites),
		zap.Int("interviews", res.Totals.TotalInterviews),
		zap.Int("lost", res.Totals.InterviewsLost),
		zap.Int("warnings", len(res.Warnings)),
	)
	for _, w := range res.Warnings {
		log.Warn("sampling: "+w.Stage,
			zap.String("code", string(w.Code)),
			zap.String("admin", w.Admin),
			zap.String("stratum", w.Stratum),
			zap.String("message", w.Message),
		)
	}
}

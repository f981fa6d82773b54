package sampling

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/survey-sampler/internal/model"
)

const stageCapacity = "capacity"

// EffectiveLimit returns the household capacity of a site under the given
// mode. In reduction mode the limit is floor(households * factor), raised to
// 1 for any site with at least one selection. The floor can push the limit
// above households * factor (and above households for an empty site).
func EffectiveLimit(households, selections int, mode model.CapacityMode, factor float64) int {
	if households < 0 {
		households = 0
	}
	switch mode {
	case model.CapacityReduction:
		limit := int(math.Floor(float64(households)*factor + ceilEpsilon))
		if selections > 0 && limit < 1 {
			limit = 1
		}
		return limit
	default:
		return households
	}
}

// ApplyConstraints corrects the interview targets of one stratum against
// household capacity. The allocations are modified in place: Target,
// EffectiveLimit, IsConstrained, Excess and ReceivedRedistribution are set.
// OriginalTarget must already hold the pre-constraint target.
//
// In CapacityNone mode over-capacity sites are flagged and reported but no
// target changes. Otherwise constrained sites are capped at their limit and
// the excess is shared among recipients in proportion to their remaining
// capacity; what cannot be placed is reported as lost.
func ApplyConstraints(key model.StratumKey, allocs []model.Allocation, mode model.CapacityMode, factor float64) (model.RedistributionStats, []model.Warning) {
	var stats model.RedistributionStats
	var warnings []model.Warning

	for i := range allocs {
		a := &allocs[i]
		a.EffectiveLimit = EffectiveLimit(a.Households, a.Selections, mode, factor)
		a.IsConstrained = a.Target > a.EffectiveLimit
		a.Excess = 0
		a.ReceivedRedistribution = false
		if a.IsConstrained {
			a.Excess = a.Target - a.EffectiveLimit
			stats.TotalExcess += a.Excess
			stats.ClustersConstrained++
		}
	}
	if stats.TotalExcess == 0 {
		return stats, nil
	}

	if mode == model.CapacityNone {
		warnings = append(warnings, model.Warning{
			Stage:   stageCapacity,
			Code:    model.WarnOverCapacity,
			Admin:   key.Admin,
			Stratum: key.Stratum,
			Message: fmt.Sprintf("%d sites exceed household capacity by %d interviews; not corrected", stats.ClustersConstrained, stats.TotalExcess),
		})
		return stats, warnings
	}

	for i := range allocs {
		if allocs[i].IsConstrained {
			allocs[i].Target = allocs[i].EffectiveLimit
		}
	}

	recipients := pickRecipients(allocs)
	stats.InterviewsRedistributed = redistribute(allocs, recipients, stats.TotalExcess)
	for _, i := range recipients {
		if allocs[i].ReceivedRedistribution {
			stats.ClustersReceiving++
		}
	}

	stats.InterviewsLost = stats.TotalExcess - stats.InterviewsRedistributed
	stats.InsufficientCapacity = stats.InterviewsLost > 0
	if stats.InsufficientCapacity {
		warnings = append(warnings, model.Warning{
			Stage:   stageCapacity,
			Code:    model.WarnInterviewsLost,
			Admin:   key.Admin,
			Stratum: key.Stratum,
			Message: fmt.Sprintf("%d of %d excess interviews could not be placed within capacity", stats.InterviewsLost, stats.TotalExcess),
		})
	}
	return stats, warnings
}

// pickRecipients returns the indexes of unconstrained sites with spare
// capacity. Sites already selected are preferred; only when none is
// unconstrained does the set widen to every unconstrained site.
func pickRecipients(allocs []model.Allocation) []int {
	var selected, all []int
	for i, a := range allocs {
		if a.IsConstrained {
			continue
		}
		all = append(all, i)
		if a.Selections > 0 {
			selected = append(selected, i)
		}
	}
	candidates := selected
	if len(candidates) == 0 {
		candidates = all
	}

	var out []int
	for _, i := range candidates {
		if allocs[i].EffectiveLimit-allocs[i].Target > 0 {
			out = append(out, i)
		}
	}
	return out
}

// redistribute shares excess among recipients by remaining capacity and
// returns the number of interviews placed. Shares are floored; the remainder
// goes one unit at a time to recipients ordered by descending remaining
// capacity, ties by unique ID.
func redistribute(allocs []model.Allocation, recipients []int, excess int) int {
	if len(recipients) == 0 || excess <= 0 {
		return 0
	}

	remaining := make([]int, len(recipients))
	totalRemaining := 0
	for k, i := range recipients {
		remaining[k] = allocs[i].EffectiveLimit - allocs[i].Target
		totalRemaining += remaining[k]
	}

	amount := min(excess, totalRemaining)
	shares := make([]int, len(recipients))
	placed := 0
	for k := range recipients {
		shares[k] = amount * remaining[k] / totalRemaining
		placed += shares[k]
	}

	order := make([]int, len(recipients))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if remaining[ka] != remaining[kb] {
			return remaining[ka] > remaining[kb]
		}
		return allocs[recipients[ka]].UniqueID < allocs[recipients[kb]].UniqueID
	})
	for left := amount - placed; left > 0; {
		progressed := false
		for _, k := range order {
			if left == 0 {
				break
			}
			if shares[k] < remaining[k] {
				shares[k]++
				left--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	total := 0
	for k, i := range recipients {
		if shares[k] > 0 {
			allocs[i].Target += shares[k]
			allocs[i].ReceivedRedistribution = true
			total += shares[k]
		}
	}
	return total
}

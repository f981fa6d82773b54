// Package report renders sampling results as workbooks, CSV exports, run
// manifests and terminal tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/survey-sampler/internal/model"
)

// Sheet names written by BuildWorkbook.
const (
	SheetSummary           = "Summary"
	SheetStrata            = "Strata"
	SheetAllocations       = "Allocations"
	SheetSelected          = "Selected"
	SheetCapacity          = "Capacity"
	SheetReplacementIssues = "Replacement Issues"
	SheetWarnings          = "Warnings"
)

// Meta describes where a result came from.
type Meta struct {
	Input       string
	Sheet       string
	GeneratedAt time.Time
}

var allocationHeader = []any{
	"Admin", "Site_ID", "Unique_ID", "Name", "Stratum", "Stratum_Name", "Households",
	"PSU_Type", "Selections", "Original_Target", "Interview_Target", "Effective_Limit",
	"Constrained", "Excess", "Redistributed",
}

// BuildWorkbook lays out a result as an xlsx file. The Capacity sheet is only
// present when constraints were applied and Replacement Issues only when
// replacements were generated.
func BuildWorkbook(res *model.Result, meta Meta) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if err := writeSummary(f, res, meta); err != nil {
		return nil, err
	}
	if err := writeStrata(f, res); err != nil {
		return nil, err
	}
	if err := writeAllocations(f, SheetAllocations, res.Allocations); err != nil {
		return nil, err
	}
	if err := writeAllocations(f, SheetSelected, res.Selected()); err != nil {
		return nil, err
	}
	if res.Capacity != nil {
		if err := writeCapacity(f, res); err != nil {
			return nil, err
		}
	}
	if res.Replacement != nil {
		if err := writeReplacementIssues(f, res.Replacement); err != nil {
			return nil, err
		}
	}
	if err := writeWarnings(f, res.Warnings); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteWorkbook streams the workbook for res to w.
func WriteWorkbook(w io.Writer, res *model.Result, meta Meta) error {
	f, err := BuildWorkbook(res, meta)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write workbook")
}

// SaveWorkbook writes the workbook for res to path.
func SaveWorkbook(path string, res *model.Result, meta Meta) error {
	f, err := BuildWorkbook(res, meta)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save workbook %s", path)
}

func writeSummary(f *xlsx.File, res *model.Result, meta Meta) error {
	sh, err := addSheet(f, SheetSummary)
	if err != nil {
		return err
	}
	p := res.Params
	t := res.Totals

	addRow(sh, "Generated", meta.GeneratedAt.UTC().Format(time.RFC3339))
	addRow(sh, "Input", meta.Input)
	if meta.Sheet != "" {
		addRow(sh, "Sheet", meta.Sheet)
	}
	addRow(sh, "Seed", res.Seed)
	addRow(sh)
	addRow(sh, "Parameter", "Value")
	addRow(sh, "Confidence level", p.ConfidenceLevel)
	addRow(sh, "Margin of error", p.MarginOfError)
	addRow(sh, "Design effect", p.DesignEffect)
	addRow(sh, "Interviews per cluster", p.InterviewsPerCluster)
	addRow(sh, "Reserve percentage", p.ReservePercentage)
	addRow(sh, "Probability", p.Probability)
	addRow(sh, "Capacity mode", string(p.CapacityMode))
	if p.CapacityMode == model.CapacityReduction {
		addRow(sh, "Reduction factor", p.ReductionFactor)
	}
	addRow(sh, "Replacements", yesNo(p.UseReplacements))
	if p.UseReplacements {
		addRow(sh, "Replacement percentage", p.ReplacementPercentage)
	}
	addRow(sh)
	addRow(sh, "Total", "Value")
	addRow(sh, "Sites", t.TotalSites)
	addRow(sh, "Admin areas", t.TotalAdmins)
	addRow(sh, "Strata", t.TotalStrata)
	addRow(sh, "Population", t.TotalPopulation)
	addRow(sh, "Sample", t.Sample)
	addRow(sh, "Sample with reserve", t.SampleWithReserve)
	addRow(sh, "Clusters", t.Clusters)
	addRow(sh, "Selected sites", t.SelectedSites)
	addRow(sh, "Primary interviews", t.PrimaryInterviews)
	addRow(sh, "Replacement interviews", t.ReplacementInterviews)
	addRow(sh, "Total interviews", t.TotalInterviews)
	addRow(sh, "Coverage %", round2(t.CoveragePct))
	addRow(sh, "Constrained clusters", t.ConstrainedClusters)
	addRow(sh, "Interviews lost", t.InterviewsLost)
	addRow(sh, "Mean target", round2(t.TargetMean))
	addRow(sh, "Median target", round2(t.TargetMedian))
	addRow(sh, "Max target", round2(t.TargetMax))
	addRow(sh, "Warnings", len(res.Warnings))
	return nil
}

func writeStrata(f *xlsx.File, res *model.Result) error {
	sh, err := addSheet(f, SheetStrata)
	if err != nil {
		return err
	}
	addRow(sh, "Admin", "Stratum", "Stratum_Name", "Sites", "Population", "Sample",
		"Sample_With_Reserve", "Clusters", "Coverage_Pct", "Selected_Sites",
		"Primary_Interviews", "Replacement_Interviews", "Final_Interviews")
	for _, s := range res.Strata {
		addRow(sh, s.Admin, s.Stratum.Stratum, s.Name, s.Sites, s.Population, s.Sample,
			s.SampleWithReserve, s.Clusters, round2(s.Coverage), s.SelectedSites,
			s.PrimaryInterviews, s.ReplacementInterviews, s.FinalInterviews)
	}
	return nil
}

func writeAllocations(f *xlsx.File, name string, allocs []model.Allocation) error {
	sh, err := addSheet(f, name)
	if err != nil {
		return err
	}
	addRow(sh, allocationHeader...)
	for _, a := range allocs {
		addRow(sh, a.Admin, a.SiteID, a.UniqueID, a.Name, a.Stratum, a.StratumName, a.Households,
			string(a.PSUType), a.Selections, a.OriginalTarget, a.Target, a.EffectiveLimit,
			yesNo(a.IsConstrained), a.Excess, yesNo(a.ReceivedRedistribution))
	}
	return nil
}

func writeCapacity(f *xlsx.File, res *model.Result) error {
	sh, err := addSheet(f, SheetCapacity)
	if err != nil {
		return err
	}
	c := res.Capacity
	addRow(sh, "Capacity mode", string(res.Params.CapacityMode))
	addRow(sh, "Total excess", c.TotalExcess)
	addRow(sh, "Clusters constrained", c.ClustersConstrained)
	addRow(sh, "Clusters receiving", c.ClustersReceiving)
	addRow(sh, "Interviews redistributed", c.InterviewsRedistributed)
	addRow(sh, "Interviews lost", c.InterviewsLost)
	addRow(sh, "Insufficient capacity", yesNo(c.InsufficientCapacity))
	addRow(sh)
	addRow(sh, "Admin", "Stratum", "Total_Excess", "Constrained", "Receiving",
		"Redistributed", "Lost", "Insufficient_Capacity")
	for _, s := range res.Strata {
		r := s.Redistribution
		if r == nil || r.TotalExcess == 0 {
			continue
		}
		addRow(sh, s.Admin, s.Stratum.Stratum, r.TotalExcess, r.ClustersConstrained, r.ClustersReceiving,
			r.InterviewsRedistributed, r.InterviewsLost, yesNo(r.InsufficientCapacity))
	}
	return nil
}

func writeReplacementIssues(f *xlsx.File, plan *model.ReplacementPlan) error {
	sh, err := addSheet(f, SheetReplacementIssues)
	if err != nil {
		return err
	}
	addRow(sh, "Primary selected", plan.PrimarySelected)
	addRow(sh, "Replacement count", plan.Count)
	addRow(sh, "Target interviews", plan.TargetInterviews)
	addRow(sh, "Scaling factor", plan.ScalingFactor)
	addRow(sh, "Candidate pool", plan.CandidatePool)
	addRow(sh)
	addRow(sh, "Admin", "Stratum", "Issue", "Available", "Required")
	for _, is := range plan.Issues {
		addRow(sh, is.Admin, is.Stratum, string(is.Issue), is.Available, is.Required)
	}
	return nil
}

func writeWarnings(f *xlsx.File, warnings []model.Warning) error {
	sh, err := addSheet(f, SheetWarnings)
	if err != nil {
		return err
	}
	addRow(sh, "Stage", "Code", "Admin", "Stratum", "Message")
	for _, w := range warnings {
		addRow(sh, w.Stage, string(w.Code), w.Admin, w.Stratum, w.Message)
	}
	return nil
}

func addSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	sh, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "report: add sheet %s", name)
	}
	return sh, nil
}

func addRow(sh *xlsx.Sheet, values ...any) {
	row := sh.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch x := v.(type) {
		case string:
			cell.SetString(x)
		case int:
			cell.SetInt(x)
		case float64:
			cell.SetFloat(x)
		case uint64:
			// Seeds overflow the float64 mantissa.
			cell.SetString(strconv.FormatUint(x, 10))
		default:
			cell.SetString(fmt.Sprint(x))
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/survey-sampler/internal/model"
)

// FormatStrata writes the per-stratum summary as an aligned table.
func FormatStrata(out io.Writer, strata []model.StratumSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "ADMIN\tSTRATUM\tSITES\tPOPULATION\tSAMPLE\tRESERVE\tCLUSTERS\tCOVERAGE\tSELECTED\tINTERVIEWS\t")
	for _, s := range strata {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1f%%\t%d\t%d\t\n",
			s.Admin, s.Stratum.Stratum, s.Sites, s.Population, s.Sample,
			s.SampleWithReserve, s.Clusters, s.Coverage, s.SelectedSites, s.FinalInterviews)
	}
	_ = w.Flush()
}

// FormatTotals writes the run totals as label/value lines.
func FormatTotals(out io.Writer, res *model.Result) {
	t := res.Totals
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Seed:\t%d\n", res.Seed)
	_, _ = fmt.Fprintf(w, "Sites:\t%d (%d strata, %d admin areas)\n", t.TotalSites, t.TotalStrata, t.TotalAdmins)
	_, _ = fmt.Fprintf(w, "Population:\t%d\n", t.TotalPopulation)
	_, _ = fmt.Fprintf(w, "Sample:\t%d (with reserve %d)\n", t.Sample, t.SampleWithReserve)
	_, _ = fmt.Fprintf(w, "Clusters:\t%d\n", t.Clusters)
	_, _ = fmt.Fprintf(w, "Selected sites:\t%d\n", t.SelectedSites)
	_, _ = fmt.Fprintf(w, "Interviews:\t%d (primary %d, replacement %d)\n", t.TotalInterviews, t.PrimaryInterviews, t.ReplacementInterviews)
	if res.Capacity != nil {
		c := res.Capacity
		_, _ = fmt.Fprintf(w, "Capacity:\t%s, %d constrained, %d redistributed, %d lost\n",
			res.Params.CapacityMode, c.ClustersConstrained, c.InterviewsRedistributed, c.InterviewsLost)
	}
	if len(res.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "Warnings:\t%d\n", len(res.Warnings))
	}
	_ = w.Flush()
}

// FormatWarnings writes one warning per line.
func FormatWarnings(out io.Writer, warnings []model.Warning) {
	for _, wr := range warnings {
		_, _ = fmt.Fprintln(out, wr.String())
	}
}

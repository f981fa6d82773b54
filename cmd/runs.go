package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/report"
	"github.com/sells-group/survey-sampler/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded sampling runs",
	Long:  "Commands for listing, viewing, and exporting recorded sampling runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		input, _ := cmd.Flags().GetString("input")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{
			Status: model.RunStatus(status),
			Input:  input,
			Limit:  limit,
			Offset: offset,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs allocations --

var runsAllocationsCmd = &cobra.Command{
	Use:   "allocations <run-id>",
	Short: "Print the per-site allocations of a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		allocs, err := st.ListAllocations(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs allocations")
		}

		asCSV, _ := cmd.Flags().GetBool("csv")
		if asCSV {
			return report.WriteAllocationsCSV(cmd.OutOrStdout(), allocs)
		}
		if len(allocs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No allocations recorded.")
			return nil
		}
		formatAllocations(cmd.OutOrStdout(), allocs)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		since, _ := cmd.Flags().GetDuration("since")
		if since > 0 {
			runs = runsSince(runs, time.Now().Add(-since))
		}

		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("input", "", "filter by input path")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsAllocationsCmd.Flags().Bool("csv", false, "write allocations as CSV")

	runsStatsCmd.Flags().Duration("since", 0, "only count runs created within this window (e.g. 24h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsAllocationsCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Running    int
	Interviews int
	Warnings   int
	AvgDurSecs float64
}

// runsSince keeps the runs created at or after t.
func runsSince(runs []model.Run, t time.Time) []model.Run {
	var out []model.Run
	for _, r := range runs {
		if !r.CreatedAt.Before(t) {
			out = append(out, r)
		}
	}
	return out
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			durCount++
			if r.Totals != nil {
				s.Interviews += r.Totals.TotalInterviews
			}
			s.Warnings += r.Warnings
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Running++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINPUT\tSTATUS\tSEED\tINTERVIEWS\tWARNINGS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t----\t----------\t--------\t-------")

	for _, r := range runs {
		input := r.Input
		if len(input) > 30 {
			input = "..." + input[len(input)-27:]
		}

		interviews := "-"
		if r.Totals != nil {
			interviews = fmt.Sprintf("%d", r.Totals.TotalInterviews)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			truncateID(r.ID),
			input,
			r.Status,
			r.Seed,
			interviews,
			r.Warnings,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatAllocations writes the allocations of a run as a table.
func formatAllocations(out io.Writer, allocs []model.Allocation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UNIQUE_ID\tADMIN\tSTRATUM\tHOUSEHOLDS\tPSU\tSELECTIONS\tTARGET\tLIMIT\tFLAGS")
	for _, a := range allocs {
		flags := ""
		if a.IsConstrained {
			flags = "constrained"
		}
		if a.ReceivedRedistribution {
			if flags != "" {
				flags += ","
			}
			flags += "redistributed"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
			a.UniqueID, a.Admin, a.Stratum, a.Households, a.PSUType,
			a.Selections, a.Target, a.EffectiveLimit, flags)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Interviews:\t%d\n", s.Interviews)
	_, _ = fmt.Fprintf(w, "Warnings:\t%d\n", s.Warnings)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/survey-sampler/internal/report"
	"github.com/sells-group/survey-sampler/internal/zonal"
)

var zonalCmd = &cobra.Command{
	Use:   "zonal <boundaries.shp|boundaries.zip> <population.asc>",
	Short: "Sum a population raster over boundary polygons",
	Long: `Sums every raster cell whose center falls inside each boundary polygon and
writes a ZonalStats workbook. The workbook is a valid sample input when its
columns are mapped, e.g. --col-site-id UniqueID --col-site-name Name
--col-households Pop_sum_rounded --col-admin Admin --col-stratum Admin.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()

		if f.Changed("concurrency") {
			cfg.Zonal.Concurrency, _ = f.GetInt("concurrency")
		}
		if err := cfg.Validate("zonal"); err != nil {
			return err
		}

		opts := zonal.BoundaryOptions{
			IDField:    cfg.Zonal.IDField,
			NameField:  cfg.Zonal.NameField,
			AdminField: cfg.Zonal.AdminField,
		}
		for name, dst := range map[string]*string{
			"id-field":    &opts.IDField,
			"name-field":  &opts.NameField,
			"admin-field": &opts.AdminField,
		} {
			if f.Changed(name) {
				*dst, _ = f.GetString(name)
			}
		}
		rawFilter, _ := f.GetString("filter")
		filter, err := zonal.ParseFilter(rawFilter)
		if err != nil {
			return err
		}
		opts.Filter = filter

		zones, err := zonal.OpenBoundaries(args[0], opts)
		if err != nil {
			return err
		}
		grid, err := zonal.LoadASCIIGrid(args[1])
		if err != nil {
			return err
		}

		runOpts := zonal.Options{Concurrency: cfg.Zonal.Concurrency}
		if f.Changed("min") {
			v, _ := f.GetFloat64("min")
			runOpts.Min = &v
		}
		if f.Changed("max") {
			v, _ := f.GetFloat64("max")
			runOpts.Max = &v
		}

		stats, err := zonal.Compute(ctx, zones, grid, runOpts)
		if err != nil {
			return err
		}

		output, _ := f.GetString("output")
		if err := report.SaveZonalWorkbook(output, stats); err != nil {
			return err
		}
		zap.L().Info("zonal: workbook written", zap.String("path", output), zap.Int("zones", len(stats)))

		sum := zonal.Summarize(stats)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Zones:\t%d\n", sum.Zones)
		_, _ = fmt.Fprintf(w, "Population:\t%.0f\n", sum.Total)
		_, _ = fmt.Fprintf(w, "No data:\t%d\n", sum.NoData)
		if runOpts.Min != nil || runOpts.Max != nil {
			_, _ = fmt.Fprintf(w, "In range:\t%d\n", sum.InRange)
			_, _ = fmt.Fprintf(w, "Below min:\t%d\n", sum.BelowMin)
			_, _ = fmt.Fprintf(w, "Above max:\t%d\n", sum.AboveMax)
		}
		_, _ = fmt.Fprintf(w, "Output:\t%s\n", output)
		return w.Flush()
	},
}

func init() {
	f := zonalCmd.Flags()
	f.StringP("output", "o", "zonal_stats.xlsx", "workbook to write")
	f.String("id-field", "", "attribute holding the zone id (record number when empty)")
	f.String("name-field", "", "attribute holding the zone name")
	f.String("admin-field", "", "attribute holding the admin area")
	f.String("filter", "", "keep only records matching field=value")
	f.Float64("min", 0, "flag zones whose sum is below this value")
	f.Float64("max", 0, "flag zones whose sum is above this value")
	f.Int("concurrency", 0, "zones processed in parallel")
	rootCmd.AddCommand(zonalCmd)
}

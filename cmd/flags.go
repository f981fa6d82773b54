package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/survey-sampler/internal/ingest"
	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/sampling"
)

// addDesignFlags registers the sample-size parameters. Flags left unset keep
// the configured values.
func addDesignFlags(fs *pflag.FlagSet) {
	fs.Float64("confidence", 0, "confidence level (0.80-0.99)")
	fs.Float64("margin", 0, "margin of error (0.01-0.20)")
	fs.Float64("design-effect", 0, "design effect (1.0-5.0)")
	fs.Int("interviews", 0, "interviews per cluster (1-50)")
	fs.Float64("reserve", 0, "reserve percentage (0-0.5)")
	fs.Float64("probability", 0, "expected proportion (0-1)")
}

// addRunFlags registers the selection, capacity and replacement parameters.
func addRunFlags(fs *pflag.FlagSet) {
	addDesignFlags(fs)
	fs.Uint64("seed", 0, "random seed (generated when unset)")
	fs.String("capacity-mode", "", "capacity constraint mode: none, capped, reduction")
	fs.Float64("reduction-factor", 0, "share of households available in reduction mode")
	fs.Bool("replacements", false, "generate replacement clusters")
	fs.Float64("replacement-pct", 0, "replacement percentage (0-1)")
}

// applyDesignFlags overlays changed design flags onto p.
func applyDesignFlags(cmd *cobra.Command, p *model.Params) {
	fs := cmd.Flags()
	if fs.Changed("confidence") {
		p.ConfidenceLevel, _ = fs.GetFloat64("confidence")
	}
	if fs.Changed("margin") {
		p.MarginOfError, _ = fs.GetFloat64("margin")
	}
	if fs.Changed("design-effect") {
		p.DesignEffect, _ = fs.GetFloat64("design-effect")
	}
	if fs.Changed("interviews") {
		p.InterviewsPerCluster, _ = fs.GetInt("interviews")
	}
	if fs.Changed("reserve") {
		p.ReservePercentage, _ = fs.GetFloat64("reserve")
	}
	if fs.Changed("probability") {
		p.Probability, _ = fs.GetFloat64("probability")
	}
}

// applyRunFlags overlays every changed parameter flag onto p.
func applyRunFlags(cmd *cobra.Command, p *model.Params) error {
	applyDesignFlags(cmd, p)
	fs := cmd.Flags()
	if fs.Changed("seed") {
		seed, _ := fs.GetUint64("seed")
		p.Seed = &seed
	}
	if fs.Changed("capacity-mode") {
		raw, _ := fs.GetString("capacity-mode")
		mode, err := sampling.ParseCapacityMode(raw)
		if err != nil {
			return err
		}
		p.CapacityMode = mode
	}
	if fs.Changed("reduction-factor") {
		p.ReductionFactor, _ = fs.GetFloat64("reduction-factor")
	}
	if fs.Changed("replacements") {
		p.UseReplacements, _ = fs.GetBool("replacements")
	}
	if fs.Changed("replacement-pct") {
		p.ReplacementPercentage, _ = fs.GetFloat64("replacement-pct")
		p.UseReplacements = true
	}
	return nil
}

// addColumnFlags registers the input column mapping.
func addColumnFlags(fs *pflag.FlagSet) {
	fs.String("col-site-name", "", "site name column")
	fs.String("col-site-id", "", "site id column")
	fs.String("col-households", "", "households column")
	fs.String("col-admin", "", "admin area column")
	fs.String("col-stratum", "", "stratum column")
	fs.String("col-unique-id", "", "unique id column (optional)")
}

// applyColumnFlags overlays changed column flags onto cols.
func applyColumnFlags(cmd *cobra.Command, cols *ingest.Columns) {
	fs := cmd.Flags()
	for name, dst := range map[string]*string{
		"col-site-name":  &cols.SiteName,
		"col-site-id":    &cols.SiteID,
		"col-households": &cols.Households,
		"col-admin":      &cols.Admin,
		"col-stratum":    &cols.Stratum,
		"col-unique-id":  &cols.UniqueID,
	} {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
}

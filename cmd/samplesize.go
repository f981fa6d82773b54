package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/survey-sampler/internal/sampling"
)

// sampleSize is the sizing of one population.
type sampleSize struct {
	Population        int     `json:"population"`
	ChiSquare         float64 `json:"chi_square"`
	Sample            int     `json:"sample"`
	SampleWithReserve int     `json:"sample_with_reserve"`
	Clusters          int     `json:"clusters"`
}

var samplesizeCmd = &cobra.Command{
	Use:   "samplesize <population>...",
	Short: "Compute sample, reserve and cluster counts for populations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := cfg.Params()
		if err != nil {
			return err
		}
		applyDesignFlags(cmd, &p)
		if err := sampling.ValidateParams(p); err != nil {
			return err
		}

		sizes := make([]sampleSize, 0, len(args))
		for _, arg := range args {
			pop, err := strconv.Atoi(arg)
			if err != nil || pop < 0 {
				return eris.Errorf("samplesize: invalid population %q", arg)
			}
			sample, err := sampling.CalculateSample(pop, p)
			if err != nil {
				return err
			}
			withReserve := sampling.SampleWithReserve(sample, p.ReservePercentage)
			sizes = append(sizes, sampleSize{
				Population:        pop,
				ChiSquare:         sampling.ChiSquareCritical(p.ConfidenceLevel),
				Sample:            sample,
				SampleWithReserve: withReserve,
				Clusters:          sampling.ClustersFor(withReserve, p.InterviewsPerCluster),
			})
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sizes)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		_, _ = fmt.Fprintln(w, "POPULATION\tSAMPLE\tRESERVE\tCLUSTERS\t")
		for _, s := range sizes {
			_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t\n", s.Population, s.Sample, s.SampleWithReserve, s.Clusters)
		}
		return w.Flush()
	},
}

func init() {
	samplesizeCmd.Flags().Bool("json", false, "print the sizes as JSON")
	addDesignFlags(samplesizeCmd.Flags())
	rootCmd.AddCommand(samplesizeCmd)
}

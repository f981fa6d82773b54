package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/survey-sampler/internal/fetcher"
	"github.com/sells-group/survey-sampler/internal/ingest"
	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/report"
	"github.com/sells-group/survey-sampler/internal/sampling"
	"github.com/sells-group/survey-sampler/internal/store"
)

var sampleCmd = &cobra.Command{
	Use:   "sample [input.xlsx|input.csv]",
	Short: "Draw a PPS cluster sample from a site table",
	Long: `Reads a site master list, sizes each admin/stratum, draws clusters with
probability proportional to households, applies capacity constraints and
writes the allocations. With --manifest-in the input, column map and
parameters of an earlier run are replayed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSample(cmd, args)
	},
}

// sampleJob is a fully resolved sample invocation.
type sampleJob struct {
	Input   string
	Sheet   string
	Columns ingest.Columns
	Params  model.Params
}

func runSample(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	job, err := resolveSampleJob(cmd, args)
	if err != nil {
		return err
	}
	if err := sampling.ValidateParams(job.Params); err != nil {
		return err
	}

	sites, ingestWarnings, err := ingest.Load(ctx, job.Input, fetcher.TableOptions{Sheet: job.Sheet}, job.Columns)
	if err != nil {
		return err
	}
	zap.L().Info("sample: sites loaded",
		zap.String("input", job.Input),
		zap.Int("sites", len(sites)),
		zap.Int("warnings", len(ingestWarnings)),
	)

	record, _ := cmd.Flags().GetBool("record")
	res, runID, err := executeSample(ctx, record, job, sites, ingestWarnings)
	if err != nil {
		return err
	}

	meta := report.Meta{Input: job.Input, Sheet: job.Sheet, GeneratedAt: time.Now()}
	if err := writeSampleOutputs(cmd, res, meta, job.Columns); err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "sample: encode result")
	}

	out := cmd.OutOrStdout()
	if runID != "" {
		_, _ = fmt.Fprintf(out, "Run: %s\n", runID)
	}
	report.FormatTotals(out, res)
	_, _ = fmt.Fprintln(out)
	report.FormatStrata(out, res.Strata)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && len(res.Warnings) > 0 {
		_, _ = fmt.Fprintln(out)
		report.FormatWarnings(out, res.Warnings)
	}
	return nil
}

// resolveSampleJob layers the config, an optional manifest and the command
// flags, in that order.
func resolveSampleJob(cmd *cobra.Command, args []string) (sampleJob, error) {
	params, err := cfg.Params()
	if err != nil {
		return sampleJob{}, err
	}
	job := sampleJob{Columns: cfg.Columns, Params: params}

	if manifestPath, _ := cmd.Flags().GetString("manifest-in"); manifestPath != "" {
		m, err := report.LoadManifest(manifestPath)
		if err != nil {
			return sampleJob{}, err
		}
		job.Input = m.Input.Path
		job.Sheet = m.Input.Sheet
		job.Columns = m.Columns
		job.Params = m.ReplayParams()
	}

	if len(args) == 1 {
		job.Input = args[0]
	}
	if job.Input == "" {
		return sampleJob{}, eris.New("sample: an input file or --manifest-in is required")
	}
	if cmd.Flags().Changed("sheet") {
		job.Sheet, _ = cmd.Flags().GetString("sheet")
	}

	applyColumnFlags(cmd, &job.Columns)
	if err := applyRunFlags(cmd, &job.Params); err != nil {
		return sampleJob{}, err
	}
	return job, nil
}

// executeSample runs the sampler, recording the run when asked to. The
// ingest warnings lead the result's warnings in both cases, so a recorded
// run counts them too.
func executeSample(ctx context.Context, record bool, job sampleJob, sites []model.Site, ingestWarnings []model.Warning) (*model.Result, string, error) {
	if !record {
		res, err := sampling.Run(sites, job.Params)
		if err != nil {
			return nil, "", err
		}
		res.Warnings = append(ingestWarnings, res.Warnings...)
		return res, "", nil
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, "", err
	}
	defer st.Close() //nolint:errcheck

	run, res, err := store.RecordRun(ctx, st, job.Input, sites, job.Params, ingestWarnings...)
	if err != nil {
		return nil, "", err
	}
	return res, run.ID, nil
}

// writeSampleOutputs writes every output file requested by flag.
func writeSampleOutputs(cmd *cobra.Command, res *model.Result, meta report.Meta, cols ingest.Columns) error {
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := report.SaveWorkbook(path, res, meta); err != nil {
			return err
		}
		zap.L().Info("sample: workbook written", zap.String("path", path))
	}

	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		if err := writeFile(path, func(w io.Writer) error {
			return report.WriteAllocationsCSV(w, res.Allocations)
		}); err != nil {
			return err
		}
		zap.L().Info("sample: allocations written", zap.String("path", path))
	}

	if path, _ := cmd.Flags().GetString("warnings-csv"); path != "" {
		if err := writeFile(path, func(w io.Writer) error {
			return report.WriteWarningsCSV(w, res.Warnings)
		}); err != nil {
			return err
		}
	}

	if path, _ := cmd.Flags().GetString("manifest"); path != "" {
		if err := report.SaveManifest(path, report.NewManifest(res, meta, cols)); err != nil {
			return err
		}
		zap.L().Info("sample: manifest written", zap.String("path", path))
	}
	return nil
}

// writeFile creates path and streams fn's output into it.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	f := sampleCmd.Flags()
	f.String("sheet", "", "XLSX sheet name (default first sheet)")
	f.StringP("output", "o", "", "write the result workbook to this path")
	f.String("csv", "", "write the allocations as CSV to this path")
	f.String("warnings-csv", "", "write the warnings as CSV to this path")
	f.String("manifest", "", "write a replay manifest to this path")
	f.String("manifest-in", "", "replay the run described by this manifest")
	f.Bool("json", false, "print the full result as JSON")
	f.Bool("record", false, "record the run in the configured store")
	f.BoolP("verbose", "v", false, "print every warning")
	addRunFlags(f)
	addColumnFlags(f)
	rootCmd.AddCommand(sampleCmd)
}

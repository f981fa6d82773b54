package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/sampling"
)

// RecordRun executes a sampling run and records it. The run row is created
// before sampling starts; it is marked complete with its allocations, or
// failed with the error message. Warnings raised before sampling, such as
// ingest warnings, are passed as prior and lead the stored result's warnings.
func RecordRun(ctx context.Context, s Store, input string, sites []model.Site, p model.Params, prior ...model.Warning) (*model.Run, *model.Result, error) {
	run, err := s.CreateRun(ctx, input, p)
	if err != nil {
		return nil, nil, err
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("input", input))

	res, runErr := sampling.Run(sites, p)
	if runErr != nil {
		if err := s.FailRun(ctx, run.ID, runErr); err != nil {
			log.Error("store: mark run failed", zap.Error(err))
		}
		return run, nil, runErr
	}
	res.Warnings = mergeWarnings(prior, res.Warnings)

	if err := s.CompleteRun(ctx, run.ID, res); err != nil {
		return run, res, eris.Wrapf(err, "store: complete run %s", run.ID)
	}

	recorded, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return run, res, err
	}
	log.Info("store: run recorded", zap.Int("allocations", len(res.Allocations)))
	return recorded, res, nil
}

func mergeWarnings(prior, stage []model.Warning) []model.Warning {
	if len(prior) == 0 {
		return stage
	}
	out := make([]model.Warning, 0, len(prior)+len(stage))
	out = append(out, prior...)
	return append(out, stage...)
}

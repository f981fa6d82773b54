// Package store persists sampling runs and their per-site allocations.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/survey-sampler/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Input  string          `json:"input,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input string, params model.Params) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.Result) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Allocations
	ListAllocations(ctx context.Context, runID string) ([]model.Allocation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// allocationColumns is the column order shared by both backends.
var allocationColumns = []string{
	"run_id", "position", "unique_id", "site_id", "name", "admin", "stratum",
	"households", "stratum_name", "psu_type", "selections", "original_target",
	"target", "effective_limit", "is_constrained", "excess", "received_redistribution",
}

func allocationRow(runID string, i int, a model.Allocation) []any {
	return []any{
		runID, i, a.UniqueID, a.SiteID, a.Name, a.Admin, a.Stratum,
		a.Households, a.StratumName, string(a.PSUType), a.Selections, a.OriginalTarget,
		a.Target, a.EffectiveLimit, a.IsConstrained, a.Excess, a.ReceivedRedistribution,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAllocation(row scannable) (model.Allocation, error) {
	var a model.Allocation
	var psu string
	err := row.Scan(
		&a.UniqueID, &a.SiteID, &a.Name, &a.Admin, &a.Stratum,
		&a.Households, &a.StratumName, &psu, &a.Selections, &a.OriginalTarget,
		&a.Target, &a.EffectiveLimit, &a.IsConstrained, &a.Excess, &a.ReceivedRedistribution,
	)
	a.PSUType = model.PSUType(psu)
	return a, err
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/sampling"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testSites() []model.Site {
	return []model.Site{
		{UniqueID: "S1", SiteID: "001", Name: "Alpha", Admin: "North", Stratum: "Camp", Households: 120},
		{UniqueID: "S2", SiteID: "002", Name: "Bravo", Admin: "North", Stratum: "Camp", Households: 40},
		{UniqueID: "S3", SiteID: "003", Name: "Charlie", Admin: "North", Stratum: "Host", Households: 300},
		{UniqueID: "S4", SiteID: "004", Name: "Delta", Admin: "South", Stratum: "Camp", Households: 15},
		{UniqueID: "S5", SiteID: "005", Name: "Echo", Admin: "South", Stratum: "Camp", Households: 60},
	}
}

func testResult(t *testing.T, seed uint64) *model.Result {
	t.Helper()
	p := model.DefaultParams()
	p.Seed = &seed
	p.CapacityMode = model.CapacityCapped
	res, err := sampling.Run(testSites(), p)
	require.NoError(t, err)
	return res
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := model.DefaultParams()
		run, err := s.CreateRun(ctx, "sites.xlsx", p)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "sites.xlsx", got.Input)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Equal(t, p.ConfidenceLevel, got.Params.ConfidenceLevel)
		assert.Nil(t, got.Totals)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "nonexistent-id")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := uint64(1<<63 + 17)
		res := testResult(t, seed)

		run, err := s.CreateRun(ctx, "sites.xlsx", res.Params)
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, run.ID, res))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		assert.Equal(t, seed, got.Seed)
		require.NotNil(t, got.Totals)
		assert.Equal(t, res.Totals.TotalInterviews, got.Totals.TotalInterviews)
		assert.Equal(t, len(res.Warnings), got.Warnings)
		assert.Equal(t, model.CapacityCapped, got.Params.CapacityMode)

		allocs, err := s.ListAllocations(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Allocations, allocs)
	})

	t.Run("CompleteRunNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.CompleteRun(context.Background(), "nonexistent-id", testResult(t, 1))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "bad.csv", model.DefaultParams())
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, sampling.ErrEmptyInput))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Contains(t, got.Error, "no sites")
	})

	t.Run("FailRunNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.FailRun(context.Background(), "nonexistent-id", nil)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateRun(ctx, "a.xlsx", model.DefaultParams())
		require.NoError(t, err)
		b, err := s.CreateRun(ctx, "b.xlsx", model.DefaultParams())
		require.NoError(t, err)
		c, err := s.CreateRun(ctx, "a.xlsx", model.DefaultParams())
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, b.ID, assert.AnError))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, b.ID, failed[0].ID)

		byInput, err := s.ListRuns(ctx, RunFilter{Input: "a.xlsx"})
		require.NoError(t, err)
		ids := []string{}
		for _, r := range byInput {
			ids = append(ids, r.ID)
		}
		assert.ElementsMatch(t, []string{a.ID, c.ID}, ids)

		page, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page, 2)

		rest, err := s.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	t.Run("ListAllocationsUnknownRun", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ListAllocations(context.Background(), "nonexistent-id")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("ListAllocationsRunning", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "sites.xlsx", model.DefaultParams())
		require.NoError(t, err)

		allocs, err := s.ListAllocations(ctx, run.ID)
		require.NoError(t, err)
		assert.Empty(t, allocs)
	})

	t.Run("RecordRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := uint64(42)
		p := model.DefaultParams()
		p.Seed = &seed

		run, res, err := RecordRun(ctx, s, "sites.xlsx", testSites(), p)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, run.Status)
		assert.Equal(t, seed, run.Seed)
		assert.Equal(t, res.Totals.TotalInterviews, run.Totals.TotalInterviews)

		allocs, err := s.ListAllocations(ctx, run.ID)
		require.NoError(t, err)
		assert.Len(t, allocs, len(testSites()))
	})

	t.Run("RecordRunCountsPriorWarnings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := uint64(42)
		p := model.DefaultParams()
		p.Seed = &seed
		prior := []model.Warning{{
			Stage:   "ingest",
			Code:    model.WarnNonNumericHouseholds,
			Message: "row 3 (site S2): households \"n/a\" is not a number; treated as 0",
		}}

		run, res, err := RecordRun(ctx, s, "sites.xlsx", testSites(), p, prior...)
		require.NoError(t, err)
		require.NotEmpty(t, res.Warnings)
		assert.Equal(t, prior[0], res.Warnings[0])
		assert.Equal(t, len(res.Warnings), run.Warnings)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, len(res.Warnings), got.Warnings)
	})

	t.Run("RecordRunFailure", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, res, err := RecordRun(ctx, s, "empty.csv", nil, model.DefaultParams())
		require.Error(t, err)
		assert.ErrorIs(t, err, sampling.ErrEmptyInput)
		assert.Nil(t, res)
		require.NotNil(t, run)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.NotEmpty(t, got.Error)
	})
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	storeTestSuite(t, newTestSQLite)
}

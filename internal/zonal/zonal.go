package zonal

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Flag marks a zone whose sum falls outside the expected band.
type Flag string

const (
	FlagNone     Flag = ""
	FlagNoData   Flag = "no_data"
	FlagBelowMin Flag = "below_min"
	FlagAboveMax Flag = "above_max"
)

// Options controls a zonal statistics run.
type Options struct {
	Concurrency int
	Min         *float64
	Max         *float64
}

// ZoneStat is the population sum for one zone.
type ZoneStat struct {
	UniqueID      string
	Name          string
	Admin         string
	PopSum        float64
	PopSumRounded int
	Vertices      int
	Cells         int
	NoData        bool
	Flag          Flag
}

// Summary counts zones by range flag.
type Summary struct {
	Zones    int
	NoData   int
	BelowMin int
	AboveMax int
	InRange  int
	Total    float64
}

// Compute sums grid cells whose centers fall inside each zone. Zones are
// processed concurrently; results keep the order of zones.
func Compute(ctx context.Context, zones []Zone, grid *Grid, opts Options) ([]ZoneStat, error) {
	if grid == nil {
		return nil, eris.New("zonal: nil raster")
	}
	if opts.Min != nil && opts.Max != nil && *opts.Min > *opts.Max {
		return nil, eris.Errorf("zonal: min %.4g above max %.4g", *opts.Min, *opts.Max)
	}

	out := make([]ZoneStat, len(zones))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range zones {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = zoneStat(zones[i], grid, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "zonal: compute")
	}

	s := Summarize(out)
	zap.L().Info("zonal: computed",
		zap.Int("zones", s.Zones),
		zap.Float64("total", s.Total),
		zap.Int("no_data", s.NoData),
		zap.Int("below_min", s.BelowMin),
		zap.Int("above_max", s.AboveMax),
	)
	return out, nil
}

func zoneStat(z Zone, grid *Grid, opts Options) ZoneStat {
	st := ZoneStat{
		UniqueID: z.ID,
		Name:     z.Name,
		Admin:    z.Admin,
		Vertices: z.Vertices(),
	}
	if z.Geometry != nil && z.Geometry.NumPolygons() > 0 {
		b := boundsOf(z.Geometry)
		r0, r1, c0, c1 := grid.window(b)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				x, y := grid.CellCenter(r, c)
				if x < b.minX || x > b.maxX || y < b.minY || y > b.maxY {
					continue
				}
				v, ok := grid.At(r, c)
				if !ok || !containsPoint(z.Geometry, x, y) {
					continue
				}
				st.PopSum += v
				st.Cells++
			}
		}
	}
	st.PopSumRounded = int(math.Round(st.PopSum))
	st.NoData = st.Cells == 0
	st.Flag = flagFor(st, opts)
	return st
}

func flagFor(st ZoneStat, opts Options) Flag {
	switch {
	case st.NoData:
		return FlagNoData
	case opts.Min != nil && st.PopSum < *opts.Min:
		return FlagBelowMin
	case opts.Max != nil && st.PopSum > *opts.Max:
		return FlagAboveMax
	}
	return FlagNone
}

// Summarize counts zones by flag and totals the sums.
func Summarize(stats []ZoneStat) Summary {
	s := Summary{Zones: len(stats)}
	for _, st := range stats {
		s.Total += st.PopSum
		switch st.Flag {
		case FlagNoData:
			s.NoData++
		case FlagBelowMin:
			s.BelowMin++
		case FlagAboveMax:
			s.AboveMax++
		default:
			s.InRange++
		}
	}
	return s
}

package zonal

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	id, name, admin string
	parts           [][]shp.Point
}

// writeShapefile writes polygon records with ID, NAME and ADMIN attributes.
func writeShapefile(t *testing.T, records []testRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("ID", 16),
		shp.StringField("NAME", 32),
		shp.StringField("ADMIN", 32),
	}))
	for _, rec := range records {
		poly := shp.Polygon(*shp.NewPolyLine(rec.parts))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, rec.id))
		require.NoError(t, w.WriteAttribute(row, 1, rec.name))
		require.NoError(t, w.WriteAttribute(row, 2, rec.admin))
	}
	w.Close()
	return path
}

// square returns a clockwise ring, the shapefile orientation for outer rings.
func square(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}
}

// hole returns a counter-clockwise ring.
func hole(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
}

// asciiGrid renders an ESRI ASCII grid of size n×n with cell size 1 at the
// origin, every cell holding value except those listed in nodata.
func asciiGrid(n int, value float64, nodata map[[2]int]bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ncols %d\nnrows %d\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n", n, n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			if nodata[[2]int{r, c}] {
				b.WriteString("-9999")
			} else {
				fmt.Fprintf(&b, "%g", value)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

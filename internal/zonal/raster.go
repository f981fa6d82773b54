package zonal

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Grid is a north-up raster read from an ESRI ASCII grid. Row 0 is the
// northernmost row.
type Grid struct {
	NCols     int
	NRows     int
	XLL       float64 // lower-left corner
	YLL       float64
	CellSize  float64
	NoData    float64
	HasNoData bool
	Values    []float64
}

// At returns the value at (row, col) and whether it holds data.
func (g *Grid) At(row, col int) (float64, bool) {
	v := g.Values[row*g.NCols+col]
	if math.IsNaN(v) || (g.HasNoData && v == g.NoData) {
		return 0, false
	}
	return v, true
}

// CellCenter returns the map coordinates of the center of (row, col).
func (g *Grid) CellCenter(row, col int) (float64, float64) {
	x := g.XLL + (float64(col)+0.5)*g.CellSize
	y := g.YLL + (float64(g.NRows-row)-0.5)*g.CellSize
	return x, y
}

// window returns the row and column ranges whose cell centers can fall in b.
func (g *Grid) window(b bbox) (r0, r1, c0, c1 int) {
	c0 = clampInt(int(math.Floor((b.minX-g.XLL)/g.CellSize-0.5)), 0, g.NCols-1)
	c1 = clampInt(int(math.Ceil((b.maxX-g.XLL)/g.CellSize-0.5)), 0, g.NCols-1)
	top := g.YLL + float64(g.NRows)*g.CellSize
	r0 = clampInt(int(math.Floor((top-b.maxY)/g.CellSize-0.5)), 0, g.NRows-1)
	r1 = clampInt(int(math.Ceil((top-b.minY)/g.CellSize-0.5)), 0, g.NRows-1)
	return r0, r1, c0, c1
}

// LoadASCIIGrid reads an ESRI ASCII grid file.
func LoadASCIIGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zonal: open raster %s", path)
	}
	defer f.Close() //nolint:errcheck
	g, err := ReadASCIIGrid(f)
	if err != nil {
		return nil, eris.Wrapf(err, "zonal: read raster %s", path)
	}
	return g, nil
}

// ReadASCIIGrid parses the ESRI ASCII grid format: a header of ncols, nrows,
// xllcorner|xllcenter, yllcorner|yllcenter, cellsize and optional
// NODATA_value, followed by nrows lines of ncols values.
func ReadASCIIGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64)
	var pending string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if !isHeaderKey(key) {
			pending = tok
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("zonal: header %s has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "zonal: header %s", tok)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "zonal: scan raster header")
	}

	g := &Grid{
		NCols:    int(header["ncols"]),
		NRows:    int(header["nrows"]),
		CellSize: header["cellsize"],
	}
	if g.NCols <= 0 || g.NRows <= 0 || g.CellSize <= 0 {
		return nil, eris.Errorf("zonal: raster header needs positive ncols, nrows and cellsize")
	}
	var okX, okY bool
	if v, ok := header["xllcorner"]; ok {
		g.XLL, okX = v, true
	} else if v, ok := header["xllcenter"]; ok {
		g.XLL, okX = v-g.CellSize/2, true
	}
	if v, ok := header["yllcorner"]; ok {
		g.YLL, okY = v, true
	} else if v, ok := header["yllcenter"]; ok {
		g.YLL, okY = v-g.CellSize/2, true
	}
	if !okX || !okY {
		return nil, eris.New("zonal: raster header missing lower-left origin")
	}
	if v, ok := header["nodata_value"]; ok {
		g.NoData, g.HasNoData = v, true
	}

	want := g.NCols * g.NRows
	g.Values = make([]float64, 0, want)
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(err, "zonal: raster value %d", len(g.Values)+1)
		}
		g.Values = append(g.Values, v)
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for len(g.Values) < want && sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "zonal: scan raster values")
	}
	if len(g.Values) != want {
		return nil, eris.Errorf("zonal: raster has %d values, header declares %d", len(g.Values), want)
	}
	return g, nil
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

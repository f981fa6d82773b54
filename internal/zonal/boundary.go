// Package zonal sums a population raster inside administrative boundary
// polygons.
package zonal

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/survey-sampler/internal/fetcher"
)

// Zone is one boundary record with its polygons and attributes.
type Zone struct {
	ID       string
	Name     string
	Admin    string
	Attrs    map[string]string
	Geometry *geom.MultiPolygon
}

// Vertices returns the number of coordinates across all rings.
func (z Zone) Vertices() int {
	if z.Geometry == nil {
		return 0
	}
	n := 0
	for i := 0; i < z.Geometry.NumPolygons(); i++ {
		p := z.Geometry.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			n += p.LinearRing(j).NumCoords()
		}
	}
	return n
}

// BoundaryOptions maps shapefile attributes onto zone fields.
type BoundaryOptions struct {
	IDField    string // record number when empty
	NameField  string
	AdminField string
	Filter     *Filter
}

// Filter keeps records whose attribute equals a value, compared
// case-insensitively after trimming.
type Filter struct {
	Field string
	Value string
}

// ParseFilter parses "field=value". An empty string yields nil.
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	field, value, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return nil, eris.Errorf("zonal: filter %q must be field=value", s)
	}
	value = strings.Trim(strings.TrimSpace(value), `'"`)
	return &Filter{Field: field, Value: value}, nil
}

func (f *Filter) match(attrs map[string]string) bool {
	if f == nil {
		return true
	}
	return strings.EqualFold(attrs[strings.ToLower(f.Field)], f.Value)
}

// OpenBoundaries loads boundaries from a .shp file or a zip archive holding one.
func OpenBoundaries(path string, opts BoundaryOptions) ([]Zone, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return LoadBoundaries(path, opts)
	}
	dir, err := os.MkdirTemp("", "zonal-*")
	if err != nil {
		return nil, eris.Wrap(err, "zonal: temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	shpPath, err := fetcher.ExtractShapefile(path, dir)
	if err != nil {
		return nil, err
	}
	return LoadBoundaries(shpPath, opts)
}

// LoadBoundaries reads polygon records from a shapefile. Records with no
// usable polygon are skipped and logged.
func LoadBoundaries(shpPath string, opts BoundaryOptions) ([]Zone, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zonal: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	known := make(map[string]bool, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		known[names[i]] = true
	}
	for _, want := range []string{opts.IDField, opts.NameField, opts.AdminField} {
		if want != "" && !known[strings.ToLower(want)] {
			return nil, eris.Errorf("zonal: shapefile %s has no attribute %q", shpPath, want)
		}
	}
	if opts.Filter != nil && !known[strings.ToLower(opts.Filter.Field)] {
		return nil, eris.Errorf("zonal: filter attribute %q not in %s", opts.Filter.Field, shpPath)
	}

	var zones []Zone
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		if !opts.Filter.match(attrs) {
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		z := Zone{
			ID:       attrs[strings.ToLower(opts.IDField)],
			Name:     attrs[strings.ToLower(opts.NameField)],
			Admin:    attrs[strings.ToLower(opts.AdminField)],
			Attrs:    attrs,
			Geometry: mp,
		}
		if opts.IDField == "" {
			z.ID = "ZONE_" + strconv.Itoa(n+1)
		}
		zones = append(zones, z)
	}

	if skipped > 0 {
		zap.L().Warn("zonal: skipped shapefile records without polygons",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return zones, nil
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefile outer
// rings run clockwise and holes counter-clockwise; a hole attaches to the
// polygon opened by the preceding outer ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("zonal: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start)+2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if n := len(flat); flat[0] != flat[n-2] || flat[1] != flat[n-1] {
			flat = append(flat, flat[0], flat[1])
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if xy.SignedArea(geom.XY, flat) >= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("zonal: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

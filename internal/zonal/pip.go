package zonal

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// containsPoint reports whether (x, y) lies inside the multipolygon: inside or
// on an exterior ring and not strictly inside any of its holes.
func containsPoint(mp *geom.MultiPolygon, x, y float64) bool {
	pt := geom.Coord{x, y}
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), pt) {
			return true
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 || p.LinearRing(0).NumCoords() < 4 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		if ring.NumCoords() < 4 {
			continue
		}
		if xy.LocatePointInRing(p.Layout(), pt, ring.FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

// bbox is an axis-aligned bounding box.
type bbox struct {
	minX, minY, maxX, maxY float64
}

func boundsOf(mp *geom.MultiPolygon) bbox {
	b := mp.Bounds()
	return bbox{minX: b.Min(0), minY: b.Min(1), maxX: b.Max(0), maxY: b.Max(1)}
}

// Package geo holds the planar geometry used to place building footprints
// inside administrative boundaries.
//
// Containment runs directly on unprojected longitude/latitude, the same
// coordinate system the catalogs ship in. At municipal scale the distortion
// is tolerable; near the edges of very large boundaries it is not exact.
// This is an inherited assumption of the source data, not a verified one.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

var (
	ErrNoGeometry    = errors.New("missing geometry")
	ErrEmptyGeometry = errors.New("empty geometry")
	ErrBadCentroid   = errors.New("centroid is not finite")
)

// RepresentativePoint returns the probe point used for containment tests:
// the planar centroid of the geometry. Degenerate shapes (no rings, zero
// area collapsing the centroid to NaN) are reported as errors so the caller
// can skip the record.
func RepresentativePoint(g orb.Geometry) (orb.Point, error) {
	if g == nil {
		return orb.Point{}, ErrNoGeometry
	}
	switch gt := g.(type) {
	case orb.Point:
		return gt, nil
	case orb.Polygon:
		if len(gt) == 0 || len(gt[0]) == 0 {
			return orb.Point{}, ErrEmptyGeometry
		}
	case orb.MultiPolygon:
		if len(gt) == 0 {
			return orb.Point{}, ErrEmptyGeometry
		}
	default:
		return orb.Point{}, fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}

	c, _ := planar.CentroidArea(g)
	if !finite(c[0]) || !finite(c[1]) {
		return orb.Point{}, ErrBadCentroid
	}
	return c, nil
}

// Boundary is a region outline prepared for repeated containment tests. The
// bounding box is computed once so the cheap rectangle check can run before
// the exact ring test on every probe.
type Boundary struct {
	geom  orb.Geometry
	bound orb.Bound
}

// NewBoundary validates g as a region outline. Only Polygon and MultiPolygon
// are admissible; a ring needs at least four positions to close.
func NewBoundary(g orb.Geometry) (Boundary, error) {
	switch gt := g.(type) {
	case nil:
		return Boundary{}, ErrNoGeometry
	case orb.Polygon:
		if err := validatePolygon(gt); err != nil {
			return Boundary{}, err
		}
	case orb.MultiPolygon:
		if len(gt) == 0 {
			return Boundary{}, ErrEmptyGeometry
		}
		for i, p := range gt {
			if err := validatePolygon(p); err != nil {
				return Boundary{}, fmt.Errorf("polygon %d: %w", i, err)
			}
		}
	default:
		return Boundary{}, fmt.Errorf("boundary must be Polygon or MultiPolygon, got %s", g.GeoJSONType())
	}
	return Boundary{geom: g, bound: g.Bound()}, nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return ErrEmptyGeometry
	}
	for i, ring := range p {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d has %d positions, need at least 4", i, len(ring))
		}
	}
	return nil
}

// Contains reports whether p falls inside the boundary.
func (b Boundary) Contains(p orb.Point) bool {
	if !b.bound.Contains(p) {
		return false
	}
	switch g := b.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// AreaM2 returns the geodesic area of g in square meters.
func AreaM2(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return math.Abs(orbgeo.Area(g))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

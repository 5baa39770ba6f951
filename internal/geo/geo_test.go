package geo

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func unitSquare(x, y, side float64) orb.Polygon {
	return orb.Polygon{{
		{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y},
	}}
}

func TestRepresentativePoint_SquareCentroid(t *testing.T) {
	pt, err := RepresentativePoint(unitSquare(0, 0, 1))
	if err != nil {
		t.Fatalf("RepresentativePoint: %v", err)
	}
	if pt[0] != 0.5 || pt[1] != 0.5 {
		t.Fatalf("centroid=%v want (0.5,0.5)", pt)
	}
}

func TestRepresentativePoint_PointPassesThrough(t *testing.T) {
	pt, err := RepresentativePoint(orb.Point{-74.1, 4.6})
	if err != nil {
		t.Fatalf("RepresentativePoint: %v", err)
	}
	if pt != (orb.Point{-74.1, 4.6}) {
		t.Fatalf("got %v", pt)
	}
}

func TestRepresentativePoint_Malformed(t *testing.T) {
	cases := []struct {
		name string
		g    orb.Geometry
		want error
	}{
		{"nil", nil, ErrNoGeometry},
		{"empty polygon", orb.Polygon{}, ErrEmptyGeometry},
		{"empty ring", orb.Polygon{{}}, ErrEmptyGeometry},
		{"empty multipolygon", orb.MultiPolygon{}, ErrEmptyGeometry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RepresentativePoint(tc.g); !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestRepresentativePoint_UnsupportedType(t *testing.T) {
	if _, err := RepresentativePoint(orb.LineString{{0, 0}, {1, 1}}); err == nil {
		t.Fatalf("expected error for LineString shape")
	}
}

func TestNewBoundary_Validation(t *testing.T) {
	if _, err := NewBoundary(nil); !errors.Is(err, ErrNoGeometry) {
		t.Fatalf("nil boundary: err=%v", err)
	}
	if _, err := NewBoundary(orb.Polygon{}); !errors.Is(err, ErrEmptyGeometry) {
		t.Fatalf("empty boundary: err=%v", err)
	}
	if _, err := NewBoundary(orb.Polygon{{{0, 0}, {1, 0}, {0, 0}}}); err == nil {
		t.Fatalf("open 3-point ring must be rejected")
	}
	if _, err := NewBoundary(orb.LineString{{0, 0}, {1, 1}}); err == nil {
		t.Fatalf("line boundary must be rejected")
	}
	if _, err := NewBoundary(unitSquare(0, 0, 1)); err != nil {
		t.Fatalf("valid square rejected: %v", err)
	}
}

func TestBoundary_Contains(t *testing.T) {
	b, err := NewBoundary(unitSquare(0, 0, 1))
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	if !b.Contains(orb.Point{0.5, 0.5}) {
		t.Fatalf("interior point not contained")
	}
	if b.Contains(orb.Point{5, 5}) {
		t.Fatalf("exterior point contained")
	}
	// Outside the ring but inside the bounding box of an L-shape.
	l := orb.Polygon{{
		{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}, {0, 0},
	}}
	lb, err := NewBoundary(l)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	if lb.Contains(orb.Point{1.5, 1.5}) {
		t.Fatalf("notch of L-shape must not be contained")
	}
	if !lb.Contains(orb.Point{0.5, 1.5}) {
		t.Fatalf("interior of L-shape must be contained")
	}
}

func TestBoundary_ContainsHole(t *testing.T) {
	donut := orb.Polygon{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}},
	}
	b, err := NewBoundary(donut)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	if b.Contains(orb.Point{2, 2}) {
		t.Fatalf("point inside hole must not be contained")
	}
	if !b.Contains(orb.Point{0.5, 2}) {
		t.Fatalf("point in the shell must be contained")
	}
}

func TestBoundary_MultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{unitSquare(0, 0, 1), unitSquare(10, 10, 1)}
	b, err := NewBoundary(mp)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	if !b.Contains(orb.Point{10.5, 10.5}) {
		t.Fatalf("second part of multipolygon not contained")
	}
	if b.Contains(orb.Point{5, 5}) {
		t.Fatalf("gap between parts must not be contained")
	}
}

func TestAreaM2_RoughScale(t *testing.T) {
	// ~11m x ~11m square near the equator.
	small := unitSquare(-74.0, 0.0, 0.0001)
	a := AreaM2(small)
	if a < 100 || a > 150 {
		t.Fatalf("area=%f want roughly 123 m^2", a)
	}
	if AreaM2(nil) != 0 {
		t.Fatalf("nil geometry must have zero area")
	}
}

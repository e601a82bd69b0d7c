package interpolation

import (
	"math"
	"math/rand"
	"testing"
)

func gridPoints(nx, ny int) []Point {
	pts := make([]Point, 0, nx*ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			pts = append(pts, Point{X: float64(i), Y: float64(j)})
		}
	}
	return pts
}

func triangleArea(a, b, c Point) float64 {
	return 0.5 * math.Abs((b.X-a.X)*(c.Y-a.Y)-(b.Y-a.Y)*(c.X-a.X))
}

func TestTriangulateGrid(t *testing.T) {
	tr, err := Triangulate(gridPoints(4, 4))
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}

	// a triangulated 4x4 grid has 2 triangles per cell
	if len(tr.Triangles) != 18 {
		t.Errorf("Expected 18 triangles, got %d", len(tr.Triangles))
	}

	// the triangles tile the convex hull without overlap
	area := 0.0
	for _, tri := range tr.Triangles {
		area += triangleArea(tr.Points[tri.A], tr.Points[tri.B], tr.Points[tri.C])
	}
	if math.Abs(area-9) > 1e-9 {
		t.Errorf("Triangle areas sum to %g, want 9", area)
	}
}

func TestTriangulateEmptyCircumcircles(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := make([]Point, 40)
	for i := range pts {
		pts[i] = Point{X: rng.Float64() * 10, Y: rng.Float64() * 10}
	}

	tr, err := Triangulate(pts)
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}

	for ti, tri := range tr.Triangles {
		cb := circumcircle(tr.Points, tri)
		for pi, p := range tr.Points {
			if pi == tri.A || pi == tri.B || pi == tri.C {
				continue
			}
			d2 := (p.X-cb.cx)*(p.X-cb.cx) + (p.Y-cb.cy)*(p.Y-cb.cy)
			if d2 < cb.r2-1e-9 {
				t.Fatalf("Point %d lies inside the circumcircle of triangle %d", pi, ti)
			}
		}
	}
}

func TestTriangulateErrors(t *testing.T) {
	if _, err := Triangulate([]Point{{0, 0}, {1, 1}}); err == nil {
		t.Error("Expected error for fewer than three points")
	}
	if _, err := Triangulate([]Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}); err == nil {
		t.Error("Expected error for collinear points")
	}
	if _, err := Triangulate([]Point{{0, 0}, {0, 0}, {0, 0}}); err == nil {
		t.Error("Expected error for coincident points")
	}
}

func TestLocate(t *testing.T) {
	tr, err := Triangulate(gridPoints(5, 5))
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		x := rng.Float64() * 4
		y := rng.Float64() * 4
		ti, l1, l2, l3, ok := tr.Locate(x, y)
		if !ok {
			t.Fatalf("Locate(%g,%g) failed inside the hull", x, y)
		}
		if math.Abs(l1+l2+l3-1) > 1e-9 {
			t.Fatalf("Barycentric coordinates at (%g,%g) sum to %g", x, y, l1+l2+l3)
		}

		// the coordinates must reproduce the query point
		tri := tr.Triangles[ti]
		px := l1*tr.Points[tri.A].X + l2*tr.Points[tri.B].X + l3*tr.Points[tri.C].X
		py := l1*tr.Points[tri.A].Y + l2*tr.Points[tri.B].Y + l3*tr.Points[tri.C].Y
		if math.Abs(px-x) > 1e-9 || math.Abs(py-y) > 1e-9 {
			t.Fatalf("Locate(%g,%g) reconstructs (%g,%g)", x, y, px, py)
		}
	}

	if _, _, _, _, ok := tr.Locate(-1, 2); ok {
		t.Error("Locate succeeded outside the hull")
	}
	if _, _, _, _, ok := tr.Locate(2, 100); ok {
		t.Error("Locate succeeded far outside the hull")
	}
}

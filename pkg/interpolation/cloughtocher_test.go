package interpolation

import (
	"math"
	"math/rand"
	"testing"
)

func TestCloughTocherExactAtNodes(t *testing.T) {
	pts := gridPoints(6, 6)
	tr, err := Triangulate(pts)
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}

	values := make([]float64, len(pts))
	for i, p := range pts {
		values[i] = math.Sin(0.4*p.X) * math.Cos(0.3*p.Y)
	}

	ct := NewCloughTocher(tr, values)
	for i, p := range pts {
		if got := ct.At(p.X, p.Y); math.Abs(got-values[i]) > 1e-9 {
			t.Errorf("At node (%g,%g): got %g, want %g", p.X, p.Y, got, values[i])
		}
	}
}

func TestCloughTocherLinearPrecision(t *testing.T) {
	// a C1 cubic built from exact data of a plane reproduces the plane
	rng := rand.New(rand.NewSource(3))
	pts := gridPoints(5, 5)
	for i := range pts {
		// jitter interior nodes so the triangulation is not axis-aligned
		if pts[i].X > 0 && pts[i].X < 4 && pts[i].Y > 0 && pts[i].Y < 4 {
			pts[i].X += 0.3 * (rng.Float64() - 0.5)
			pts[i].Y += 0.3 * (rng.Float64() - 0.5)
		}
	}
	tr, err := Triangulate(pts)
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}

	plane := func(x, y float64) float64 { return 2*x - 3*y + 1 }
	values := make([]float64, len(pts))
	for i, p := range pts {
		values[i] = plane(p.X, p.Y)
	}

	ct := NewCloughTocher(tr, values)
	for i := 0; i < 300; i++ {
		x := 0.5 + rng.Float64()*3
		y := 0.5 + rng.Float64()*3
		if got, want := ct.At(x, y), plane(x, y); math.Abs(got-want) > 1e-7 {
			t.Fatalf("At(%g,%g): got %g, want %g", x, y, got, want)
		}
	}
}

func TestCloughTocherConstantField(t *testing.T) {
	pts := gridPoints(4, 4)
	tr, err := Triangulate(pts)
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}

	values := make([]float64, len(pts))
	for i := range values {
		values[i] = 5.5
	}

	ct := NewCloughTocher(tr, values)
	for x := 0.0; x <= 3.0; x += 0.25 {
		for y := 0.0; y <= 3.0; y += 0.25 {
			if got := ct.At(x, y); math.Abs(got-5.5) > 1e-9 {
				t.Fatalf("At(%g,%g): got %g, want 5.5", x, y, got)
			}
		}
	}
}

func TestCloughTocherOutsideHull(t *testing.T) {
	pts := gridPoints(4, 4)
	tr, err := Triangulate(pts)
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	values := make([]float64, len(pts))
	for i := range values {
		values[i] = 1
	}

	ct := NewCloughTocher(tr, values)
	if got := ct.At(-2, -2); got != 0 {
		t.Errorf("Outside the hull: got %g, want 0", got)
	}
	if got := ct.At(10, 1.5); got != 0 {
		t.Errorf("Outside the hull: got %g, want 0", got)
	}
}

// Package interpolation densifies sparse scatter samples into full
// angle x radial-bin sinogram planes. It builds a single 2D triangulation
// over the sampled coordinates and evaluates a C1 piecewise-cubic
// Clough-Tocher interpolant over the dense grid, one plane at a time.
package interpolation

import (
	"fmt"
	"math"
)

// Point is a 2D sample coordinate (angle, radial bin).
type Point struct {
	X, Y float64
}

// Triangle references three vertices of a triangulation by index.
type Triangle struct {
	A, B, C int
}

// Triangulation is a Delaunay triangulation of a fixed point set. It is
// built once and shared read-only across all interpolation workers.
type Triangulation struct {
	Points    []Point
	Triangles []Triangle

	// neighbors lists, per vertex, the vertices connected by an edge
	neighbors [][]int

	// uniform location grid: cell -> candidate triangle indices
	grid       [][]int
	gridNX     int
	gridNY     int
	minX, minY float64
	cellW      float64
	cellH      float64
}

// circumball is the circumcircle of a triangle, cached during construction.
type circumball struct {
	cx, cy, r2 float64
}

// Triangulate builds the Delaunay triangulation of the given points using
// the Bowyer-Watson incremental algorithm. The point set must contain at
// least 3 distinct, non-collinear points; a degenerate set is a fatal
// precondition violation and yields an error.
func Triangulate(pts []Point) (*Triangulation, error) {
	if len(pts) < 3 {
		return nil, fmt.Errorf("interpolation: need at least 3 sample points for triangulation, got %d", len(pts))
	}

	// bounding box for the enclosing super-triangle
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		return nil, fmt.Errorf("interpolation: sample points are coincident")
	}
	cx := 0.5 * (minX + maxX)
	cy := 0.5 * (minY + maxY)

	// vertices of the super-triangle are appended after the real points
	verts := make([]Point, len(pts), len(pts)+3)
	copy(verts, pts)
	s0 := len(pts)
	verts = append(verts,
		Point{cx - 20*span, cy - span},
		Point{cx + 20*span, cy - span},
		Point{cx, cy + 20*span},
	)

	tris := []Triangle{{s0, s0 + 1, s0 + 2}}
	balls := []circumball{circumcircle(verts, tris[0])}

	type edge struct{ u, v int }

	var bad []int
	for p := 0; p < len(pts); p++ {
		px, py := verts[p].X, verts[p].Y

		// triangles whose circumcircle contains the new point
		bad = bad[:0]
		for ti := range tris {
			dx := px - balls[ti].cx
			dy := py - balls[ti].cy
			if dx*dx+dy*dy <= balls[ti].r2*(1+1e-12) {
				bad = append(bad, ti)
			}
		}

		// boundary of the cavity: edges that appear exactly once
		edgeCount := make(map[edge]int)
		for _, ti := range bad {
			t := tris[ti]
			for _, e := range [3]edge{{t.A, t.B}, {t.B, t.C}, {t.C, t.A}} {
				key := e
				if key.u > key.v {
					key.u, key.v = key.v, key.u
				}
				edgeCount[key]++
			}
		}

		// remove bad triangles (swap-delete, highest index first)
		for i := len(bad) - 1; i >= 0; i-- {
			ti := bad[i]
			last := len(tris) - 1
			tris[ti] = tris[last]
			balls[ti] = balls[last]
			tris = tris[:last]
			balls = balls[:last]
		}

		// re-triangulate the cavity
		for e, n := range edgeCount {
			if n != 1 {
				continue
			}
			t := Triangle{e.u, e.v, p}
			tris = append(tris, t)
			balls = append(balls, circumcircle(verts, t))
		}
	}

	// drop triangles touching the super-triangle
	out := &Triangulation{Points: pts}
	for _, t := range tris {
		if t.A >= s0 || t.B >= s0 || t.C >= s0 {
			continue
		}
		out.Triangles = append(out.Triangles, t)
	}
	if len(out.Triangles) == 0 {
		return nil, fmt.Errorf("interpolation: sample points are collinear, triangulation is degenerate")
	}

	out.buildNeighbors()
	out.buildLocationGrid()
	return out, nil
}

func circumcircle(verts []Point, t Triangle) circumball {
	a, b, c := verts[t.A], verts[t.B], verts[t.C]
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	if d == 0 {
		// collinear triangle, give it an empty circumcircle so it never
		// captures a point
		return circumball{r2: -1}
	}
	a2 := a.X*a.X + a.Y*a.Y
	b2 := b.X*b.X + b.Y*b.Y
	c2 := c.X*c.X + c.Y*c.Y
	ux := (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d
	uy := (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d
	dx := a.X - ux
	dy := a.Y - uy
	return circumball{cx: ux, cy: uy, r2: dx*dx + dy*dy}
}

func (tr *Triangulation) buildNeighbors() {
	seen := make(map[[2]int]struct{})
	tr.neighbors = make([][]int, len(tr.Points))
	addEdge := func(u, v int) {
		key := [2]int{u, v}
		if u > v {
			key = [2]int{v, u}
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tr.neighbors[u] = append(tr.neighbors[u], v)
		tr.neighbors[v] = append(tr.neighbors[v], u)
	}
	for _, t := range tr.Triangles {
		addEdge(t.A, t.B)
		addEdge(t.B, t.C)
		addEdge(t.C, t.A)
	}
}

// buildLocationGrid bins triangles into a uniform grid by bounding box so
// point location does not scan the whole triangle list.
func (tr *Triangulation) buildLocationGrid() {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range tr.Points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	n := int(math.Sqrt(float64(len(tr.Triangles)))) + 1
	tr.gridNX, tr.gridNY = n, n
	tr.minX, tr.minY = minX, minY
	tr.cellW = (maxX - minX) / float64(n)
	tr.cellH = (maxY - minY) / float64(n)
	if tr.cellW == 0 {
		tr.cellW = 1
	}
	if tr.cellH == 0 {
		tr.cellH = 1
	}
	tr.grid = make([][]int, n*n)
	for ti, t := range tr.Triangles {
		pa, pb, pc := tr.Points[t.A], tr.Points[t.B], tr.Points[t.C]
		x0 := tr.cellX(math.Min(pa.X, math.Min(pb.X, pc.X)))
		x1 := tr.cellX(math.Max(pa.X, math.Max(pb.X, pc.X)))
		y0 := tr.cellY(math.Min(pa.Y, math.Min(pb.Y, pc.Y)))
		y1 := tr.cellY(math.Max(pa.Y, math.Max(pb.Y, pc.Y)))
		for gy := y0; gy <= y1; gy++ {
			for gx := x0; gx <= x1; gx++ {
				ci := gy*tr.gridNX + gx
				tr.grid[ci] = append(tr.grid[ci], ti)
			}
		}
	}
}

func (tr *Triangulation) cellX(x float64) int {
	i := int((x - tr.minX) / tr.cellW)
	if i < 0 {
		i = 0
	}
	if i >= tr.gridNX {
		i = tr.gridNX - 1
	}
	return i
}

func (tr *Triangulation) cellY(y float64) int {
	i := int((y - tr.minY) / tr.cellH)
	if i < 0 {
		i = 0
	}
	if i >= tr.gridNY {
		i = tr.gridNY - 1
	}
	return i
}

// Locate finds the triangle containing (x, y) and its barycentric
// coordinates. It returns ok=false for points outside the convex hull.
func (tr *Triangulation) Locate(x, y float64) (ti int, l1, l2, l3 float64, ok bool) {
	ci := tr.cellY(y)*tr.gridNX + tr.cellX(x)
	for _, cand := range tr.grid[ci] {
		t := tr.Triangles[cand]
		b1, b2, b3, inside := barycentric(tr.Points[t.A], tr.Points[t.B], tr.Points[t.C], x, y)
		if inside {
			return cand, b1, b2, b3, true
		}
	}
	return 0, 0, 0, 0, false
}

func barycentric(a, b, c Point, x, y float64) (l1, l2, l3 float64, inside bool) {
	d := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if d == 0 {
		return 0, 0, 0, false
	}
	l1 = ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / d
	l2 = ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / d
	l3 = 1 - l1 - l2
	const tol = -1e-9
	return l1, l2, l3, l1 >= tol && l2 >= tol && l3 >= tol
}

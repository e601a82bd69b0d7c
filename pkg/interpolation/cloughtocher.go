package interpolation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CloughTocher is a continuously-differentiable piecewise-cubic interpolant
// over a shared triangulation. Each macro triangle is split at its centroid
// into three cubic Bezier patches; the cross-edge normal derivative is
// constrained to vary linearly along every macro edge, which makes the
// surface C1 across triangle boundaries. Queries outside the convex hull
// evaluate to 0.
//
// The triangulation is shared and read-only; one CloughTocher instance is
// built per sinogram plane (per value vector) and owned by a single worker.
type CloughTocher struct {
	tri     *Triangulation
	patches []ctPatch
}

// ctPatch caches the 19 Bezier ordinates of one macro triangle.
type ctPatch struct {
	// corner values
	f1, f2, f3 float64
	// outer-edge ordinates, qIJ sits on edge I->J one third from I
	q12, q21, q23, q32, q31, q13 float64
	// interior-edge ordinates near the vertices
	r1, r2, r3 float64
	// patch-interior ordinates adjacent to each outer edge
	s12, s23, s31 float64
	// interior-edge ordinates near the centroid
	t1, t2, t3 float64
	// centroid ordinate
	u float64
}

// NewCloughTocher estimates per-vertex gradients from the triangulation
// neighbourhood of each vertex and precomputes the Bezier control net of
// every triangle. values must hold one sample per triangulation point.
func NewCloughTocher(tri *Triangulation, values []float64) *CloughTocher {
	grads := estimateGradients(tri, values)

	ct := &CloughTocher{
		tri:     tri,
		patches: make([]ctPatch, len(tri.Triangles)),
	}
	for i, t := range tri.Triangles {
		ct.patches[i] = buildPatch(
			tri.Points[t.A], tri.Points[t.B], tri.Points[t.C],
			values[t.A], values[t.B], values[t.C],
			grads[t.A], grads[t.B], grads[t.C],
		)
	}
	return ct
}

// estimateGradients fits, for every vertex, a linear model through its
// edge-connected neighbours by distance-weighted least squares. The normal
// equations are regularized with a small ridge term so boundary vertices
// with nearly collinear neighbourhoods stay solvable.
func estimateGradients(tri *Triangulation, values []float64) [][2]float64 {
	grads := make([][2]float64, len(tri.Points))
	a := mat.NewDense(2, 2, nil)
	b := mat.NewVecDense(2, nil)
	var x mat.VecDense

	for v := range tri.Points {
		nbrs := tri.neighbors[v]
		if len(nbrs) == 0 {
			continue
		}
		var sxx, sxy, syy, sxf, syf float64
		for _, n := range nbrs {
			dx := tri.Points[n].X - tri.Points[v].X
			dy := tri.Points[n].Y - tri.Points[v].Y
			df := values[n] - values[v]
			w := 1 / (dx*dx + dy*dy)
			sxx += w * dx * dx
			sxy += w * dx * dy
			syy += w * dy * dy
			sxf += w * dx * df
			syf += w * dy * df
		}
		a.Set(0, 0, sxx+1e-12)
		a.Set(0, 1, sxy)
		a.Set(1, 0, sxy)
		a.Set(1, 1, syy+1e-12)
		b.SetVec(0, sxf)
		b.SetVec(1, syf)
		if err := x.SolveVec(a, b); err != nil {
			// near-singular neighbourhood, keep a flat gradient
			continue
		}
		grads[v] = [2]float64{x.AtVec(0), x.AtVec(1)}
	}
	return grads
}

func buildPatch(p1, p2, p3 Point, f1, f2, f3 float64, g1, g2, g3 [2]float64) ctPatch {
	c := Point{(p1.X + p2.X + p3.X) / 3, (p1.Y + p2.Y + p3.Y) / 3}

	dirDeriv := func(g [2]float64, from, to Point) float64 {
		return (g[0]*(to.X-from.X) + g[1]*(to.Y-from.Y)) / 3
	}

	pt := ctPatch{f1: f1, f2: f2, f3: f3}
	pt.q12 = f1 + dirDeriv(g1, p1, p2)
	pt.q13 = f1 + dirDeriv(g1, p1, p3)
	pt.q21 = f2 + dirDeriv(g2, p2, p1)
	pt.q23 = f2 + dirDeriv(g2, p2, p3)
	pt.q31 = f3 + dirDeriv(g3, p3, p1)
	pt.q32 = f3 + dirDeriv(g3, p3, p2)
	pt.r1 = f1 + dirDeriv(g1, p1, c)
	pt.r2 = f2 + dirDeriv(g2, p2, c)
	pt.r3 = f3 + dirDeriv(g3, p3, c)

	pt.s12 = edgeInterior(p1, p2, c, f1, f2, pt.q12, pt.q21, pt.r1, pt.r2)
	pt.s23 = edgeInterior(p2, p3, c, f2, f3, pt.q23, pt.q32, pt.r2, pt.r3)
	pt.s31 = edgeInterior(p3, p1, c, f3, f1, pt.q31, pt.q13, pt.r3, pt.r1)

	// C1 conditions across the interior edges fix the remaining ordinates
	pt.t1 = (pt.s12 + pt.s31 + pt.r1) / 3
	pt.t2 = (pt.s23 + pt.s12 + pt.r2) / 3
	pt.t3 = (pt.s31 + pt.s23 + pt.r3) / 3
	pt.u = (pt.t1 + pt.t2 + pt.t3) / 3
	return pt
}

// edgeInterior computes the patch-interior ordinate adjacent to the outer
// edge (pi, pj). It enforces that the derivative across the edge, taken in
// the edge-normal direction, varies linearly along the edge; both triangles
// sharing the edge derive the same normal derivative from the shared vertex
// data, which yields global C1 continuity.
func edgeInterior(pi, pj, c Point, fi, fj, qij, qji, ri, rj float64) float64 {
	// inward edge normal
	ex, ey := pj.X-pi.X, pj.Y-pi.Y
	nx, ny := -ey, ex
	mx, my := 0.5*(pi.X+pj.X), 0.5*(pi.Y+pj.Y)
	if nx*(c.X-mx)+ny*(c.Y-my) < 0 {
		nx, ny = -nx, -ny
	}

	// barycentric direction of the normal in the (pi, pj, centroid) frame:
	// d2*(pj-pi) + d3*(c-pi) = n, d1 = -d2-d3
	ax, ay := pj.X-pi.X, pj.Y-pi.Y
	bx, by := c.X-pi.X, c.Y-pi.Y
	det := ax*by - ay*bx
	d2 := (nx*by - ny*bx) / det
	d3 := (ax*ny - ay*nx) / det
	d1 := -d2 - d3

	return (d1*(0.5*fi+0.5*qji-qij) +
		d2*(0.5*qij+0.5*fj-qji) +
		d3*0.5*(ri+rj)) / d3
}

// At evaluates the interpolant at (x, y). Points outside the convex hull of
// the sample set evaluate to 0.
func (ct *CloughTocher) At(x, y float64) float64 {
	ti, l1, l2, l3, ok := ct.tri.Locate(x, y)
	if !ok {
		return 0
	}
	p := &ct.patches[ti]

	// pick the centroid subtriangle by the smallest barycentric coordinate
	// and evaluate its cubic Bernstein form
	var m1, m2, m3 float64
	var b300, b030, b210, b120, b201, b021, b102, b012, b111 float64
	switch {
	case l3 <= l1 && l3 <= l2: // subtriangle (p1, p2, centroid)
		m1, m2, m3 = l1-l3, l2-l3, 3*l3
		b300, b030 = p.f1, p.f2
		b210, b120 = p.q12, p.q21
		b201, b021 = p.r1, p.r2
		b102, b012 = p.t1, p.t2
		b111 = p.s12
	case l1 <= l2: // subtriangle (p2, p3, centroid)
		m1, m2, m3 = l2-l1, l3-l1, 3*l1
		b300, b030 = p.f2, p.f3
		b210, b120 = p.q23, p.q32
		b201, b021 = p.r2, p.r3
		b102, b012 = p.t2, p.t3
		b111 = p.s23
	default: // subtriangle (p3, p1, centroid)
		m1, m2, m3 = l3-l2, l1-l2, 3*l2
		b300, b030 = p.f3, p.f1
		b210, b120 = p.q31, p.q13
		b201, b021 = p.r3, p.r1
		b102, b012 = p.t3, p.t1
		b111 = p.s31
	}

	v := b300*m1*m1*m1 + b030*m2*m2*m2 + p.u*m3*m3*m3 +
		3*(b210*m1*m1*m2+b201*m1*m1*m3+
			b120*m1*m2*m2+b021*m2*m2*m3+
			b102*m1*m3*m3+b012*m2*m3*m3) +
		6*b111*m1*m2*m3

	if math.IsNaN(v) {
		return 0
	}
	return v
}

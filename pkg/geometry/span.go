package geometry

import (
	"fmt"
	"math"
)

// Span1Map implements the canonical span-1 sinogram addressing scheme: a
// bijection between ordered ring pairs (r1, r0) and linear sinogram-plane
// indices in [0, NRings^2).
type Span1Map struct {
	nRings int

	// offseg is the per-ring-difference segment offset table. Segment
	// lengths walk down from NRings in half steps, rounded up, so that
	// positive and negative ring differences interleave.
	offseg []int
}

// NewSpan1Map precomputes the segment-offset table for a scanner with the
// given number of rings.
func NewSpan1Map(nRings int) *Span1Map {
	seg := []int{nRings}
	for x := float64(nRings) - 1; x > 0; x -= 0.5 {
		seg = append(seg, int(math.Ceil(x)))
	}
	offseg := make([]int, len(seg)+1)
	for i, s := range seg {
		offseg[i+1] = offseg[i] + s
	}
	return &Span1Map{nRings: nRings, offseg: offseg}
}

// NRings returns the ring count the map was built for.
func (m *Span1Map) NRings() int { return m.nRings }

// NPlanes returns the total number of span-1 planes.
func (m *Span1Map) NPlanes() int { return m.nRings * m.nRings }

// Index maps a ring pair (r1, r0) to its span-1 sinogram-plane index.
func (m *Span1Map) Index(r1, r0 int) int {
	rd := r1 - r0
	if rd < 0 {
		rd = -rd
	}
	rdi := 2 * rd
	if r1 > r0 {
		rdi--
	}
	lo := r0
	if r1 < r0 {
		lo = r1
	}
	return m.offseg[rdi] + lo
}

// RingPair inverts Index, returning the (r1, r0) pair of a span-1 plane.
func (m *Span1Map) RingPair(sni int) (r1, r0 int) {
	// offseg is ascending, planes per segment are contiguous
	rdi := 0
	for rdi+1 < len(m.offseg) && m.offseg[rdi+1] <= sni {
		rdi++
	}
	lo := sni - m.offseg[rdi]
	rd := (rdi + 1) / 2
	if rdi == 0 {
		return lo, lo
	}
	if rdi%2 == 1 { // r1 > r0
		return lo + rd, lo
	}
	return lo, lo + rd
}

// SSRLUT groups sinogram planes into single-slice-rebinned (SSR) segments.
// Each span-1 or span-11 plane maps to the michelogram anti-diagonal
// r1+r0 of its (mean) ring pair.
type SSRLUT struct {
	// PlaneToSegment maps a sinogram-plane index to its SSR segment
	PlaneToSegment []int

	// SegmentPlanes counts the planes folded into each SSR segment
	SegmentPlanes []int

	// NSegments is the number of SSR segments, 2*NRings-1
	NSegments int
}

// BuildSSRLUTSpan1 builds the SSR grouping table for span-1 sinograms.
func BuildSSRLUTSpan1(m *Span1Map) *SSRLUT {
	nseg := 2*m.nRings - 1
	lut := &SSRLUT{
		PlaneToSegment: make([]int, m.NPlanes()),
		SegmentPlanes:  make([]int, nseg),
		NSegments:      nseg,
	}
	for r1 := 0; r1 < m.nRings; r1++ {
		for r0 := 0; r0 < m.nRings; r0++ {
			sni := m.Index(r1, r0)
			lut.PlaneToSegment[sni] = r1 + r0
			lut.SegmentPlanes[r1+r0]++
		}
	}
	return lut
}

// BuildSSRLUTSpan11 builds the SSR grouping table for span-11 sinograms.
// Segments are ordered 0, +1, -1, +2, -2, ... with ring-difference windows
// of width 11 centred at multiples of 11, clipped to maxRingDiff; within a
// segment, planes are ordered by the axial sum r1+r0.
func BuildSSRLUTSpan11(nRings, maxRingDiff int) (*SSRLUT, error) {
	if maxRingDiff < 0 || maxRingDiff >= nRings {
		return nil, fmt.Errorf("geometry: maximum ring difference %d out of range for %d rings",
			maxRingDiff, nRings)
	}
	nseg := 2*nRings - 1
	lut := &SSRLUT{
		NSegments:     nseg,
		SegmentPlanes: make([]int, nseg),
	}
	nSegs11 := (maxRingDiff + 5) / 11 // one-sided oblique segment count
	for s := 0; s <= nSegs11; s++ {
		lo := 11*s - 5
		if lo < 0 {
			lo = 0
		}
		hi := 11*s + 5
		if hi > maxRingDiff {
			hi = maxRingDiff
		}
		if lo > hi {
			continue
		}
		sides := 1
		if s > 0 {
			sides = 2 // +s then -s
		}
		for side := 0; side < sides; side++ {
			// axial sum ranges over all ring pairs with |r1-r0| in [lo,hi]
			for z := lo; z <= 2*(nRings-1)-lo; z++ {
				lut.PlaneToSegment = append(lut.PlaneToSegment, z)
				lut.SegmentPlanes[z]++
			}
		}
	}
	return lut, nil
}

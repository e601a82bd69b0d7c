package geometry

import "fmt"

// AxialRowKind tags how a ring pair's scatter estimate is assembled from the
// sampled scatter rings.
type AxialRowKind int

const (
	// Exact marks a ring pair whose both rings are sampled scatter rings.
	Exact AxialRowKind = iota

	// LinearRing1 marks a pair whose r0 is sampled and r1 interpolated.
	LinearRing1

	// LinearRing0 marks a pair whose r1 is sampled and r0 interpolated.
	LinearRing0

	// Bilinear marks a pair interpolated along both ring axes.
	Bilinear
)

// AxialTerm is one (source-plane, weight) contribution to a ring pair's
// scatter estimate. Source is a span-1 plane index of a sampled ring pair.
type AxialTerm struct {
	Source int
	Weight float64
}

// AxialRow holds the interpolation terms of one span-1 plane. The weights of
// a row always sum to 1: one term for an exact match, two for a linear case
// and four for the bilinear case.
type AxialRow struct {
	Kind  AxialRowKind
	Terms []AxialTerm
}

// AxialLUT is the ring-pair to sinogram-index lookup table with bilinear
// interpolation weights, built once per scanner configuration and read-only
// afterwards. Rows are addressed by span-1 plane index; planes outside the
// active ring range have nil Terms.
type AxialLUT struct {
	Rows  []AxialRow
	Span1 *Span1Map
}

// BuildAxialLUT constructs the axial scatter interpolation LUT over the
// active ring range [ringStart, ringEnd). For every in-range ring pair it
// finds the nearest sampled rings on both axes and emits the matching
// exact, linear or bilinear interpolation terms, following the michelogram
// bilinear scheme.
//
// The scatter ring set must be non-empty, strictly ascending and must
// bracket the active ring range, otherwise an error is returned.
func BuildAxialLUT(span1 *Span1Map, rings []int, ringStart, ringEnd int) (*AxialLUT, error) {
	nRings := span1.NRings()
	if err := ValidateScatterRings(rings, nRings); err != nil {
		return nil, err
	}
	if ringStart < 0 || ringEnd > nRings || ringStart >= ringEnd {
		return nil, fmt.Errorf("geometry: invalid active ring range [%d,%d)", ringStart, ringEnd)
	}
	if rings[0] > ringStart || rings[len(rings)-1] < ringEnd-1 {
		return nil, fmt.Errorf("geometry: scatter rings [%d,%d] do not bracket active range [%d,%d)",
			rings[0], rings[len(rings)-1], ringStart, ringEnd)
	}

	lut := &AxialLUT{
		Rows:  make([]AxialRow, span1.NPlanes()),
		Span1: span1,
	}

	for r1 := ringStart; r1 < ringEnd; r1++ {
		// nearest sampled rings bracketing r1 (borders down and up)
		bd := nextRingAtOrAbove(rings, r1)
		bu := lastRingAtOrBelow(rings, r1)
		for r0 := ringStart; r0 < ringEnd; r0++ {
			// nearest sampled rings bracketing r0 (borders right and left)
			br := nextRingAtOrAbove(rings, r0)
			bl := lastRingAtOrBelow(rings, r0)

			sni := span1.Index(r1, r0)

			switch {
			case br == bl && bu != bd:
				lut.Rows[sni] = AxialRow{
					Kind: LinearRing1,
					Terms: []AxialTerm{
						{Source: span1.Index(bd, r0), Weight: float64(r1-bu) / float64(bd-bu)},
						{Source: span1.Index(bu, r0), Weight: float64(bd-r1) / float64(bd-bu)},
					},
				}
			case bu == bd && br != bl:
				lut.Rows[sni] = AxialRow{
					Kind: LinearRing0,
					Terms: []AxialTerm{
						{Source: span1.Index(r1, bl), Weight: float64(br-r0) / float64(br-bl)},
						{Source: span1.Index(r1, br), Weight: float64(r0-bl) / float64(br-bl)},
					},
				}
			case bu == bd && br == bl:
				lut.Rows[sni] = AxialRow{
					Kind:  Exact,
					Terms: []AxialTerm{{Source: sni, Weight: 1}},
				}
			default:
				cf := float64((br - bl) * (bd - bu))
				lut.Rows[sni] = AxialRow{
					Kind: Bilinear,
					Terms: []AxialTerm{
						{Source: span1.Index(bd, bl), Weight: float64((br-r0)*(r1-bu)) / cf},
						{Source: span1.Index(bd, br), Weight: float64((r0-bl)*(r1-bu)) / cf},
						{Source: span1.Index(bu, bl), Weight: float64((br-r0)*(bd-r1)) / cf},
						{Source: span1.Index(bu, br), Weight: float64((r0-bl)*(bd-r1)) / cf},
					},
				}
			}
		}
	}

	return lut, nil
}

func nextRingAtOrAbove(rings []int, r int) int {
	for _, idx := range rings {
		if idx >= r {
			return idx
		}
	}
	return rings[len(rings)-1]
}

func lastRingAtOrBelow(rings []int, r int) int {
	for i := len(rings) - 1; i >= 0; i-- {
		if rings[i] <= r {
			return rings[i]
		}
	}
	return rings[0]
}

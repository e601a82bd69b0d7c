// Package geometry builds the detector-geometry lookup tables used for
// scatter modelling: the reduced transaxial crystal set, the span-1
// ring-pair addressing scheme and the axial interpolation LUT.
package geometry

import (
	"fmt"
	"math"
)

// scatterCrystalPeriod is the selection period of transaxial scatter
// crystals: among non-gap crystals, every 7th one is kept. This decimation
// is a scanner-specific design constant.
const scatterCrystalPeriod = 7

// crystalGapPeriod marks detector-block gap crystals: any crystal whose
// one-based index is a multiple of 9 carries no scintillator.
const crystalGapPeriod = 9

// Crystal holds the transaxial corner coordinates of a single detector
// crystal, in cm. (X0,Y0) and (X1,Y1) are the two front-face corners.
type Crystal struct {
	X0, Y0 float64
	X1, Y1 float64
}

// CrystalTable is the per-crystal transaxial geometry of one detector ring.
type CrystalTable []Crystal

// BuildCrystalTable synthesizes a transaxial crystal table for a scanner
// with nCrystals crystals evenly spaced on a ring of the given radius (cm).
// Each crystal's corners are placed at its angular extent on the ring.
func BuildCrystalTable(nCrystals int, radius float64) CrystalTable {
	tbl := make(CrystalTable, nCrystals)
	step := 2 * math.Pi / float64(nCrystals)
	for c := 0; c < nCrystals; c++ {
		a0 := float64(c) * step
		a1 := float64(c+1) * step
		tbl[c] = Crystal{
			X0: radius * math.Cos(a0),
			Y0: radius * math.Sin(a0),
			X1: radius * math.Cos(a1),
			Y1: radius * math.Sin(a1),
		}
	}
	return tbl
}

// ScatterCrystal is one selected transaxial crystal used for scatter
// sampling, with its midpoint coordinate.
type ScatterCrystal struct {
	// Index is the crystal index within the full crystal table
	Index int

	// X, Y is the crystal midpoint in cm, averaged from its corners
	X, Y float64
}

// SelectScatterCrystals selects the reduced, periodically spaced set of
// transaxial crystals used for scatter sampling. Crystals at detector-block
// gaps are skipped; among the remaining crystals every 7th one is kept,
// recording its midpoint coordinate.
func SelectScatterCrystals(tbl CrystalTable) []ScatterCrystal {
	var scrs []ScatterCrystal
	cntr := 0
	for c := 0; c < len(tbl); c++ {
		if (c+1)%crystalGapPeriod == 0 {
			continue
		}
		cntr++
		if cntr == scatterCrystalPeriod {
			cntr = 0
			scrs = append(scrs, ScatterCrystal{
				Index: c,
				X:     0.5 * (tbl[c].X0 + tbl[c].X1),
				Y:     0.5 * (tbl[c].Y0 + tbl[c].Y1),
			})
		}
	}
	return scrs
}

// DefaultScatterRings returns the fixed ascending set of axial ring indices
// used for scatter sampling on a 64-ring scanner.
func DefaultScatterRings() []int {
	return []int{0, 10, 19, 28, 35, 44, 53, 63}
}

// ValidateScatterRings checks that a scatter ring set is non-empty, strictly
// ascending and within [0, nRings). A malformed set is a fatal configuration
// error.
func ValidateScatterRings(rings []int, nRings int) error {
	if len(rings) == 0 {
		return fmt.Errorf("geometry: scatter ring set is empty")
	}
	for i, r := range rings {
		if r < 0 || r >= nRings {
			return fmt.Errorf("geometry: scatter ring %d out of range [0,%d)", r, nRings)
		}
		if i > 0 && r <= rings[i-1] {
			return fmt.Errorf("geometry: scatter ring set not strictly ascending at index %d", i)
		}
	}
	return nil
}

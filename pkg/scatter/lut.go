// Package scatter orchestrates voxel-driven scatter modelling: it assembles
// the static scatter geometry LUTs, drives the external compute kernel and
// turns the kernel's sparse output into a scaled, full-resolution 3D
// scatter sinogram.
package scatter

import (
	"fmt"

	"petscatter/pkg/config"
	"petscatter/pkg/geometry"
	"petscatter/pkg/physics"
)

// ScatterLUT bundles the static geometry lookup tables used for scatter
// modelling. It is built once per scanner configuration and shared by
// reference across all estimate calls; all fields are read-only after
// construction.
type ScatterLUT struct {
	// Crystals is the reduced transaxial crystal set used for sampling
	Crystals []geometry.ScatterCrystal

	// Rings is the ascending set of axial rings used for sampling
	Rings []int

	// Span1 is the span-1 ring-pair addressing scheme
	Span1 *geometry.Span1Map

	// Axial is the ring-pair interpolation LUT over the sampled rings
	Axial *geometry.AxialLUT

	// KN is the Klein-Nishina scattering-probability table
	KN *physics.KleinNishinaLUT
}

// BuildScatterLUT assembles the scatter geometry LUT for the configured
// scanner. rings selects the sampled scatter rings; passing nil uses the
// standard set for a 64-ring scanner. The crystal table provides the
// transaxial geometry the scatter crystals are picked from.
func BuildScatterLUT(cfg *config.Config, tbl geometry.CrystalTable, rings []int) (*ScatterLUT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(tbl) != cfg.Scanner.NCrystals {
		return nil, fmt.Errorf("scatter: crystal table has %d crystals, config expects %d",
			len(tbl), cfg.Scanner.NCrystals)
	}

	if rings == nil {
		if cfg.Scanner.NRings != 64 {
			return nil, fmt.Errorf("scatter: no default scatter ring set for %d rings, pass one explicitly",
				cfg.Scanner.NRings)
		}
		rings = geometry.DefaultScatterRings()
	}

	span1 := geometry.NewSpan1Map(cfg.Scanner.NRings)
	axial, err := geometry.BuildAxialLUT(span1, rings, cfg.Scatter.RingStart, cfg.Scatter.RingEnd)
	if err != nil {
		return nil, fmt.Errorf("scatter: building axial LUT: %w", err)
	}

	crystals := geometry.SelectScatterCrystals(tbl)
	if len(crystals) == 0 {
		return nil, fmt.Errorf("scatter: crystal selection produced no scatter crystals")
	}

	return &ScatterLUT{
		Crystals: crystals,
		Rings:    append([]int(nil), rings...),
		Span1:    span1,
		Axial:    axial,
		KN:       physics.BuildKleinNishinaLUT(cfg),
	}, nil
}

// NScatterCrystals returns the number of selected transaxial scatter
// crystals.
func (l *ScatterLUT) NScatterCrystals() int { return len(l.Crystals) }

// NScatterRings returns the number of sampled axial rings.
func (l *ScatterLUT) NScatterRings() int { return len(l.Rings) }

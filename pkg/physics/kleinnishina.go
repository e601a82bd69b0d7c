// Package physics builds the Klein-Nishina scattering-probability lookup
// table used to weight scatter-angle contributions in the scatter model.
package physics

import (
	"math"

	"petscatter/pkg/config"
)

// E511 is the photon energy of positron annihilation in keV.
const E511 float64 = 511.0

// R02 is the squared classical electron radius [cm^2].
const R02 float64 = 7.940787e-26

// fwhmToSigma converts a full-width-at-half-maximum to a Gaussian sigma.
const fwhmToSigma = 2.35482

// KleinNishinaLUT is a dense lookup table indexed by quantized
// cosine-of-scattering-angle bin. Prob holds the normalized scattering
// probability per bin, Correction the total cross-section correction
// factor. Built once per scanner configuration, read-only afterwards.
type KleinNishinaLUT struct {
	Prob       []float64
	Correction []float64

	// CosUpsMax and CosStep define the cosine axis: bin i corresponds to
	// cos(theta) = CosUpsMax + i*CosStep
	CosUpsMax float64
	CosStep   float64
}

// BuildKleinNishinaLUT evaluates the Klein-Nishina differential and total
// cross-section closed forms over the quantized cosine bins. When the
// scanner's energy resolution is positive, the probability folds in a
// complementary-error-function energy-acceptance term evaluated at the
// lower-level discriminator. Bin 0 is forced to zero probability: it
// collects angles beyond the modelled acceptance cutoff.
func BuildKleinNishinaLUT(cfg *config.Config) *KleinNishinaLUT {
	nCos := cfg.Scatter.NCosBins
	lut := &KleinNishinaLUT{
		Prob:       make([]float64, nCos),
		Correction: make([]float64, nCos),
		CosUpsMax:  cfg.Scatter.CosUpsMax,
		CosStep:    cfg.CosStep(),
	}

	sig511 := cfg.Acquisition.EnergyResolution * E511 / fwhmToSigma

	// average cross-section normalization term
	crssAvg := 2*(4/3.0-math.Log(3)) + 0.5*math.Log(3) - 4/9.0

	for i := 0; i < nCos; i++ {
		cosups := lut.CosUpsMax + float64(i)*lut.CosStep
		alpha := 1 / (2 - cosups)

		kn := 0.5 * R02 * alpha * alpha * (alpha + 1/alpha - (1 - cosups*cosups))
		lut.Prob[i] = kn / (2 * math.Pi * R02 * crssAvg)

		lut.Correction[i] = ((1+alpha)/(alpha*alpha)*
			(2*(1+alpha)/(1+2*alpha)-math.Log(1+2*alpha)/alpha) +
			math.Log(1+2*alpha)/(2*alpha) -
			(1+3*alpha)/((1+2*alpha)*(1+2*alpha))) / crssAvg

		if cfg.Acquisition.EnergyResolution > 0 {
			lut.Prob[i] *= 0.5 * math.Erfc(
				(cfg.Acquisition.LLD-alpha*E511)/(sig511*math.Sqrt(2*alpha)))
		}
	}

	// large-angle edge case: angles greater than the maximum modelled
	// scattering angle fold into bin 0 and must not contribute
	lut.Prob[0] = 0

	return lut
}

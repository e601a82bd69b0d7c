package scatter

import (
	"petscatter/internal/models"
)

// KernelInput carries everything the external scatter compute kernel needs:
// the coarse-grid images, the attenuation-ray validity mask and the static
// scatter geometry LUT.
type KernelInput struct {
	// MuMap is the smoothed, downsampled mu-map on the coarse grid
	MuMap *models.Volume

	// MuMask flags coarse voxels with a valid attenuation ray LUT
	MuMask []bool

	// Emission is the smoothed, downsampled emission estimate
	Emission *models.Volume

	// LUT is the scatter geometry lookup table
	LUT *ScatterLUT

	// NPlanes is the number of sinogram planes the kernel must fill,
	// matching the configured span
	NPlanes int

	// NTOFBins is the number of time-of-flight bins
	NTOFBins int
}

// KernelOutput is the sparse scatter sample produced by the compute kernel.
type KernelOutput struct {
	// BinIndices is the per-crystal-pair sampled linear-index table:
	// angle*NBins + bin for every modelled crystal pair
	BinIndices []int

	// Values holds one scatter estimate per TOF bin, plane and crystal
	// pair: Values[(tof*NPlanes + plane)*len(BinIndices) + pair]
	Values []float64
}

// ComputeKernel evaluates the scatter physics per selected crystal/ring
// combination and writes raw per-angular-bin samples. It is an external
// collaborator; this package only relies on its input/output shapes.
type ComputeKernel interface {
	EstimateScatter(in *KernelInput) (*KernelOutput, error)
}

// ForwardProjector computes line-integral sinograms of image volumes at
// span-1, one plane per ring pair; segment averages then weigh every
// ring pair equally regardless of the acquisition span. Attenuation
// factors are derived from the returned integrals as exp(-x).
type ForwardProjector interface {
	Project(img *models.Volume) (*models.Sinogram3D, error)
}

// Normalizer produces normalization-component sinograms. For scatter
// scaling the geometric and axial-efficiency components are overridden to
// 1, as those factors are accounted for separately.
type Normalizer interface {
	// NormSino returns the normalization sinogram for the given span
	// with geometric and axial terms set to 1, in gapped addressing.
	NormSino(span int) (*models.Sinogram3D, error)

	// AxialFactors returns the per-plane axial normalization factors for
	// the given span.
	AxialFactors(span int) ([]float64, error)
}

// Reconstructor produces an uncorrected emission image (no scatter or
// attenuation corrections), used on demand as the first-pass emission
// estimate and as the input for source masking.
type Reconstructor interface {
	ReconstructUncorrected(iterations int, fwhm float64) (*models.Volume, error)
}

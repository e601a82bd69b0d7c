package scatter

import (
	"fmt"
	"math"

	"petscatter/internal/models"
	"petscatter/pkg/config"
	"petscatter/pkg/geometry"
	"petscatter/pkg/interpolation"
	"petscatter/pkg/volume"
)

const (
	// attenuation factors above this are treated as object-free, putting
	// the bin in the scatter tail region
	tailAttThreshold = 0.999

	// fraction of the per-segment SSR scatter maximum below which tail
	// bins are too weak to contribute to the fit
	defaultTailFitFraction = 0.1

	// fraction of the radial axis excluded at each sinogram edge, where
	// the projection geometry is unreliable
	fovMarginFraction = 0.05

	// total modelled scatter below this is a valid all-zero estimate
	// (cold or empty frame); scaling is skipped
	zeroScatterThreshold = 1e-4

	// image-domain smoothing (FWHM in cm) applied to the mu-map and
	// emission image before downsampling to the coarse grid
	scatterSmoothFWHM = 0.42

	// smoothing and threshold defining the coarse-grid mu mask
	muMaskFWHM      = 0.84
	muMaskThreshold = 0.003

	// emission-mask construction: smoothing FWHM and the two thresholds
	// (fraction of max, then absolute after re-smoothing)
	emMaskFWHM       = 0.6
	emMaskMaxFrac    = 0.07
	emMaskThreshold  = 0.01
	emMaskIterations = 3
	emMaskReconFWHM  = 2.0
)

// Input bundles the per-frame data the scatter estimate is computed from.
type Input struct {
	// ObjectMuMap is the object (patient) attenuation map in cm^-1
	ObjectMuMap *models.Volume

	// HardwareMuMap is the hardware attenuation map (bed, coils); nil if
	// no hardware is in the field of view
	HardwareMuMap *models.Volume

	// Emission is the current emission estimate. If nil, an uncorrected
	// reconstruction is produced internally (a Reconstructor must then
	// be wired into the estimator).
	Emission *models.Volume

	// UncorrectedEmission is the scatter- and attenuation-uncorrected
	// emission image the source-exclusion mask is derived from. If nil
	// and masking is requested, one is reconstructed internally.
	UncorrectedEmission *models.Volume

	// PromptsSSR is the single-slice-rebinned prompt sinogram, one plane
	// per michelogram segment
	PromptsSSR *models.Sinogram3D

	// Randoms is the randoms estimate at the acquisition span
	Randoms *models.Sinogram3D
}

// Options controls optional outputs and the tail-fit behaviour.
type Options struct {
	// TailFitFraction is the fraction of the per-segment SSR scatter
	// maximum a tail bin must exceed to enter the fit; 0 selects the
	// default of 0.1, a negative value requests a zero threshold so
	// every positive tail bin enters the fit
	TailFitFraction float64

	// MaskEmission excludes sinogram bins traversed by the emission
	// source from the tail fit
	MaskEmission bool

	// ReturnUninterpolated includes the raw sparse kernel samples and
	// their bin indices in the result
	ReturnUninterpolated bool

	// ReturnSSR includes the scaled single-slice-rebinned scatter
	// sinogram in the result
	ReturnSSR bool

	// ReturnMasks includes the per-segment tail-fit masks in the result
	ReturnMasks bool
}

// Result is the scatter estimate plus the requested optional outputs.
// Optional fields are nil unless enabled in Options.
type Result struct {
	// Sino is the scaled scatter sinogram at the acquisition span
	Sino *models.Sinogram3D

	// Scale is the fitted per-segment scaling factor
	Scale []float64

	// Uninterpolated holds the raw sparse kernel samples, flattened as
	// [plane][sample]; BinIndices gives each sample's angle*NBins+bin
	// position
	Uninterpolated []float64
	BinIndices     []int

	// SSR is the scaled single-slice-rebinned scatter sinogram
	SSR *models.Sinogram3D

	// Masks holds one tail-fit mask per segment, each over a single
	// angle-by-bin plane
	Masks [][]bool
}

// Estimator orchestrates a full scatter estimate: image preparation,
// kernel evaluation, sinogram interpolation and per-segment tail scaling.
// It is safe to reuse across frames; the LUTs are built once.
type Estimator struct {
	cfg *config.Config
	lut *ScatterLUT

	kernel        ComputeKernel
	projector     ForwardProjector
	normalizer    Normalizer
	reconstructor Reconstructor

	// ssr maps acquisition-span planes onto michelogram segments; ssr1
	// does the same for span-1 planes, used for the attenuation and
	// normalization segment averages
	ssr  *geometry.SSRLUT
	ssr1 *geometry.SSRLUT

	// validBins masks the usable radial range, shared by every plane
	validBins []bool

	progressCallback interpolation.ProgressCallback
}

// NewEstimator wires the estimator's collaborators together. The
// reconstructor may be nil; Estimate then requires an emission image in
// its input.
func NewEstimator(cfg *config.Config, lut *ScatterLUT, kernel ComputeKernel,
	projector ForwardProjector, normalizer Normalizer, reconstructor Reconstructor) (*Estimator, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lut == nil {
		return nil, fmt.Errorf("scatter: estimator needs a scatter LUT")
	}
	if kernel == nil || projector == nil || normalizer == nil {
		return nil, fmt.Errorf("scatter: estimator needs a compute kernel, projector and normalizer")
	}

	ssr1 := geometry.BuildSSRLUTSpan1(lut.Span1)

	var ssr *geometry.SSRLUT
	var err error
	switch cfg.Acquisition.Span {
	case 1:
		ssr = ssr1
	case 11:
		ssr, err = geometry.BuildSSRLUTSpan11(cfg.Scanner.NRings, cfg.Scanner.MaxRingDiff)
		if err != nil {
			return nil, fmt.Errorf("scatter: building span-11 rebinning LUT: %w", err)
		}
	default:
		return nil, fmt.Errorf("scatter: unsupported span %d", cfg.Acquisition.Span)
	}

	margin := int(math.Round(fovMarginFraction * float64(cfg.Scanner.NBins)))
	valid := make([]bool, cfg.Scanner.NAngles*cfg.Scanner.NBins)
	for a := 0; a < cfg.Scanner.NAngles; a++ {
		for b := margin; b < cfg.Scanner.NBins-margin; b++ {
			valid[a*cfg.Scanner.NBins+b] = true
		}
	}

	return &Estimator{
		cfg:           cfg,
		lut:           lut,
		kernel:        kernel,
		projector:     projector,
		normalizer:    normalizer,
		reconstructor: reconstructor,
		ssr:           ssr,
		ssr1:          ssr1,
		validBins:     valid,
	}, nil
}

// SetProgressCallback installs a callback reporting interpolation progress.
func (e *Estimator) SetProgressCallback(cb interpolation.ProgressCallback) {
	e.progressCallback = cb
}

// NPlanes returns the number of sinogram planes at the acquisition span.
func (e *Estimator) NPlanes() int { return len(e.ssr.PlaneToSegment) }

// Estimate runs the full scatter estimation for one frame. The returned
// sinogram is scaled to the measured tail counts per segment; an all-zero
// result (total modelled scatter below threshold) is returned without
// error and without scaling.
func (e *Estimator) Estimate(in *Input, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	tailFrac := opts.TailFitFraction
	switch {
	case tailFrac == 0:
		tailFrac = defaultTailFitFraction
	case tailFrac < 0:
		// explicit request for a zero threshold
		tailFrac = 0
	case tailFrac >= 1:
		return nil, fmt.Errorf("scatter: tail-fit fraction %g out of range [0,1)", tailFrac)
	}
	if e.cfg.Acquisition.NTOFBins != 1 {
		return nil, fmt.Errorf("scatter: time-of-flight estimation is not supported (got %d TOF bins)",
			e.cfg.Acquisition.NTOFBins)
	}
	if err := e.checkInput(in); err != nil {
		return nil, err
	}

	nAngles := e.cfg.Scanner.NAngles
	nBins := e.cfg.Scanner.NBins
	planeSize := nAngles * nBins
	snno := e.NPlanes()
	nSeg0 := e.cfg.NSegments0()

	// Emission estimate: use the provided image, otherwise fall back to
	// a quick uncorrected reconstruction for the first pass.
	em := in.Emission
	uncorr := in.UncorrectedEmission
	if em == nil {
		var err error
		uncorr, err = e.reconstructUncorrected(uncorr)
		if err != nil {
			return nil, err
		}
		em = uncorr
	}

	// The source-exclusion mask always derives from the uncorrected
	// image, never from the corrected estimate the kernel sees.
	if opts.MaskEmission && uncorr == nil {
		var err error
		uncorr, err = e.reconstructUncorrected(nil)
		if err != nil {
			return nil, err
		}
	}

	// Coarse-grid images for the compute kernel. The object and hardware
	// mu-maps are combined for scatter-medium modelling; the attenuation
	// tail projection uses the object alone.
	sigmaXY := volume.FWHMToSigma(scatterSmoothFWHM, e.cfg.Scanner.VoxelXY)
	muObj := volume.GaussianSmooth3D(in.ObjectMuMap, sigmaXY)

	muAll := in.ObjectMuMap
	if in.HardwareMuMap != nil {
		muAll = in.ObjectMuMap.Clone()
		for i, v := range in.HardwareMuMap.Data {
			muAll.Data[i] += v
		}
	}

	muim, err := volume.Zoom(volume.GaussianSmooth3D(muAll, sigmaXY), e.cfg.Scatter.MuScale)
	if err != nil {
		return nil, fmt.Errorf("scatter: downsampling mu-map: %w", err)
	}
	emim, err := volume.Zoom(volume.GaussianSmooth3D(em, sigmaXY), e.cfg.Scatter.EmScale)
	if err != nil {
		return nil, fmt.Errorf("scatter: downsampling emission image: %w", err)
	}

	coarseVoxel := e.cfg.Scanner.VoxelXY / e.cfg.Scatter.MuScale[1]
	mumsk := volume.MaskAbove(
		volume.GaussianSmooth3D(muim, volume.FWHMToSigma(muMaskFWHM, coarseVoxel)),
		muMaskThreshold)

	// Kernel evaluation: sparse per-plane scatter samples.
	out, err := e.kernel.EstimateScatter(&KernelInput{
		MuMap:    muim,
		MuMask:   mumsk,
		Emission: emim,
		LUT:      e.lut,
		NPlanes:  snno,
		NTOFBins: e.cfg.Acquisition.NTOFBins,
	})
	if err != nil {
		return nil, fmt.Errorf("scatter: compute kernel: %w", err)
	}
	nPairs := len(out.BinIndices)
	if nPairs == 0 {
		return nil, fmt.Errorf("scatter: compute kernel returned no sampled crystal pairs")
	}
	if len(out.Values) != snno*nPairs {
		return nil, fmt.Errorf("scatter: kernel returned %d values, expected %d planes x %d pairs",
			len(out.Values), snno, nPairs)
	}

	total := 0.0
	for _, v := range out.Values {
		total += v
	}
	if total < zeroScatterThreshold {
		return e.zeroResult(out, opts, snno, nSeg0), nil
	}

	// Interpolate the sparse samples to full sinogram planes, folding
	// the single-slice-rebinned sum as a by-product.
	si, err := interpolation.NewSinogramInterpolator(out.BinIndices, nAngles, nBins,
		e.cfg.Processing.NumCores)
	if err != nil {
		return nil, fmt.Errorf("scatter: building sinogram interpolator: %w", err)
	}
	if e.progressCallback != nil {
		si.SetProgressCallback(e.progressCallback)
	}
	ssn, sssr, err := si.Interpolate(out.Values, snno, e.ssr.PlaneToSegment, nSeg0)
	if err != nil {
		return nil, fmt.Errorf("scatter: interpolating scatter sinogram: %w", err)
	}

	// Segment-averaged attenuation factors from the object mu-map alone;
	// bins the object barely attenuates form the scatter tail.
	attossr, err := e.attenuationSSR(muObj, nSeg0)
	if err != nil {
		return nil, err
	}

	// Segment-averaged normalization (geometric and axial terms unity),
	// always averaged from span-1 planes so every ring pair weighs
	// equally.
	nrm1, err := e.normalizer.NormSino(1)
	if err != nil {
		return nil, fmt.Errorf("scatter: span-1 normalization sinogram: %w", err)
	}
	if err := e.checkSino("span-1 normalization", nrm1, e.lut.Span1.NPlanes()); err != nil {
		return nil, err
	}
	nrmsssr := e.foldMean(nrm1, e.ssr1, nSeg0)

	// Per-bin normalization at the acquisition span for the final
	// scaling.
	nrm, err := e.normalizer.NormSino(e.cfg.Acquisition.Span)
	if err != nil {
		return nil, fmt.Errorf("scatter: normalization sinogram: %w", err)
	}
	if err := e.checkSino("normalization", nrm, snno); err != nil {
		return nil, err
	}

	saxnrm, err := e.normalizer.AxialFactors(e.cfg.Acquisition.Span)
	if err != nil {
		return nil, fmt.Errorf("scatter: axial normalization factors: %w", err)
	}
	if len(saxnrm) != snno {
		return nil, fmt.Errorf("scatter: got %d axial factors, expected %d", len(saxnrm), snno)
	}

	// Randoms folded onto segments; counts are summed, not averaged.
	rssr := e.foldSum(in.Randoms, e.ssr, nSeg0)

	// Optional emission mask: bins whose line of response crosses the
	// source are excluded from the tail fit.
	var mssr []bool
	if opts.MaskEmission {
		mssr, err = e.emissionMaskSSR(uncorr, nSeg0)
		if err != nil {
			return nil, err
		}
	}

	// Per-segment tail fit. Each segment carries its own mask and scale.
	masks := make([][]bool, nSeg0)
	scale := make([]float64, nSeg0)
	for seg := 0; seg < nSeg0; seg++ {
		segMax := 0.0
		base := seg * planeSize
		for i := 0; i < planeSize; i++ {
			if sssr.Data[base+i] > segMax {
				segMax = sssr.Data[base+i]
			}
		}
		thr := tailFrac * segMax

		mask := make([]bool, planeSize)
		num, den := 0.0, 0.0
		for i := 0; i < planeSize; i++ {
			if !e.validBins[i] || attossr[base+i] < tailAttThreshold {
				continue
			}
			if mssr != nil && mssr[base+i] {
				continue
			}
			if sssr.Data[base+i] <= thr {
				continue
			}
			mask[i] = true
			num += in.PromptsSSR.Data[base+i] - rssr[base+i]
			den += sssr.Data[base+i] * nrmsssr[base+i]
		}
		if den <= 0 {
			return nil, fmt.Errorf("scatter: empty tail-fit region in segment %d", seg)
		}
		scale[seg] = num / den
		masks[seg] = mask
	}

	// Scaled outputs: the SSR product carries the segment-averaged
	// normalization, the full sinogram the per-bin one.
	for seg := 0; seg < nSeg0; seg++ {
		base := seg * planeSize
		for i := 0; i < planeSize; i++ {
			sssr.Data[base+i] *= nrmsssr[base+i] * scale[seg]
		}
	}
	for p := 0; p < snno; p++ {
		s := scale[e.ssr.PlaneToSegment[p]] * saxnrm[p]
		base := p * planeSize
		for i := 0; i < planeSize; i++ {
			ssn.Data[base+i] *= s * nrm.Data[base+i]
		}
	}

	res := &Result{Sino: ssn, Scale: scale}
	if opts.ReturnUninterpolated {
		res.Uninterpolated = out.Values
		res.BinIndices = out.BinIndices
	}
	if opts.ReturnSSR {
		res.SSR = sssr
	}
	if opts.ReturnMasks {
		res.Masks = masks
	}
	return res, nil
}

// checkInput validates the per-frame inputs against the configuration.
func (e *Estimator) checkInput(in *Input) error {
	if in == nil {
		return fmt.Errorf("scatter: nil input")
	}
	if in.ObjectMuMap == nil {
		return fmt.Errorf("scatter: missing object mu-map")
	}
	if in.HardwareMuMap != nil && len(in.HardwareMuMap.Data) != len(in.ObjectMuMap.Data) {
		return fmt.Errorf("scatter: hardware mu-map has %d voxels, object has %d",
			len(in.HardwareMuMap.Data), len(in.ObjectMuMap.Data))
	}
	if in.PromptsSSR == nil || in.Randoms == nil {
		return fmt.Errorf("scatter: missing prompt or randoms sinogram")
	}
	if err := e.checkSino("rebinned prompt", in.PromptsSSR, e.cfg.NSegments0()); err != nil {
		return err
	}
	return e.checkSino("randoms", in.Randoms, e.NPlanes())
}

func (e *Estimator) checkSino(name string, s *models.Sinogram3D, nPlanes int) error {
	if s.NPlanes != nPlanes || s.NAngles != e.cfg.Scanner.NAngles || s.NBins != e.cfg.Scanner.NBins {
		return fmt.Errorf("scatter: %s sinogram is %dx%dx%d, expected %dx%dx%d",
			name, s.NPlanes, s.NAngles, s.NBins, nPlanes, e.cfg.Scanner.NAngles, e.cfg.Scanner.NBins)
	}
	return nil
}

// attenuationSSR projects the object mu-map at span-1, converts line
// integrals to attenuation factors and averages them per segment, so
// every ring pair contributes one plane to its segment mean.
func (e *Estimator) attenuationSSR(mu *models.Volume, nSeg0 int) ([]float64, error) {
	proj, err := e.projector.Project(mu)
	if err != nil {
		return nil, fmt.Errorf("scatter: projecting mu-map: %w", err)
	}
	if err := e.checkSino("attenuation", proj, e.lut.Span1.NPlanes()); err != nil {
		return nil, err
	}
	att := models.NewSinogram3D(proj.NPlanes, proj.NAngles, proj.NBins)
	for i, v := range proj.Data {
		att.Data[i] = math.Exp(-v)
	}
	return e.foldMean(att, e.ssr1, nSeg0), nil
}

// emissionMaskSSR builds the source mask in SSR space from the
// uncorrected emission image: it is smoothed and thresholded twice,
// projected at span-1, and any segment bin the source projects into is
// flagged.
func (e *Estimator) emissionMaskSSR(em *models.Volume, nSeg0 int) ([]bool, error) {
	sigma := volume.FWHMToSigma(emMaskFWHM, e.cfg.Scanner.VoxelXY)
	smo := volume.GaussianSmooth3D(em, sigma)

	maxv := 0.0
	for _, v := range smo.Data {
		if v > maxv {
			maxv = v
		}
	}
	msk := models.NewVolume(smo.NX, smo.NY, smo.NZ)
	msk.VoxelXY, msk.VoxelZ = em.VoxelXY, em.VoxelZ
	for i, v := range smo.Data {
		if v > emMaskMaxFrac*maxv {
			msk.Data[i] = 1
		}
	}
	smo = volume.GaussianSmooth3D(msk, sigma)
	for i, v := range smo.Data {
		if v > emMaskThreshold {
			msk.Data[i] = 1
		} else {
			msk.Data[i] = 0
		}
	}

	proj, err := e.projector.Project(msk)
	if err != nil {
		return nil, fmt.Errorf("scatter: projecting emission mask: %w", err)
	}
	sn1 := e.lut.Span1.NPlanes()
	if err := e.checkSino("emission mask", proj, sn1); err != nil {
		return nil, err
	}

	planeSize := proj.NAngles * proj.NBins
	mssr := make([]bool, nSeg0*planeSize)
	for p := 0; p < sn1; p++ {
		seg := e.ssr1.PlaneToSegment[p]
		for i := 0; i < planeSize; i++ {
			if proj.Data[p*planeSize+i] > 0 {
				mssr[seg*planeSize+i] = true
			}
		}
	}
	return mssr, nil
}

// foldSum groups sinogram planes onto segments by summation, following
// the plane-to-segment mapping of the given rebinning LUT.
func (e *Estimator) foldSum(s *models.Sinogram3D, ssr *geometry.SSRLUT, nSeg0 int) []float64 {
	planeSize := s.NAngles * s.NBins
	out := make([]float64, nSeg0*planeSize)
	for p := 0; p < s.NPlanes; p++ {
		seg := ssr.PlaneToSegment[p]
		for i := 0; i < planeSize; i++ {
			out[seg*planeSize+i] += s.Data[p*planeSize+i]
		}
	}
	return out
}

// foldMean groups sinogram planes onto segments by averaging; used for
// multiplicative factors.
func (e *Estimator) foldMean(s *models.Sinogram3D, ssr *geometry.SSRLUT, nSeg0 int) []float64 {
	planeSize := s.NAngles * s.NBins
	out := e.foldSum(s, ssr, nSeg0)
	for seg := 0; seg < nSeg0; seg++ {
		n := float64(ssr.SegmentPlanes[seg])
		if n == 0 {
			continue
		}
		for i := 0; i < planeSize; i++ {
			out[seg*planeSize+i] /= n
		}
	}
	return out
}

// reconstructUncorrected returns the cached uncorrected emission image,
// or produces one through the wired reconstructor.
func (e *Estimator) reconstructUncorrected(cached *models.Volume) (*models.Volume, error) {
	if cached != nil {
		return cached, nil
	}
	if e.reconstructor == nil {
		return nil, fmt.Errorf("scatter: no emission image provided and no reconstructor wired")
	}
	img, err := e.reconstructor.ReconstructUncorrected(emMaskIterations, emMaskReconFWHM)
	if err != nil {
		return nil, fmt.Errorf("scatter: uncorrected reconstruction: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("scatter: reconstructor returned no image")
	}
	return img, nil
}

// zeroResult assembles a valid all-zero estimate, honouring the requested
// optional outputs.
func (e *Estimator) zeroResult(out *KernelOutput, opts *Options, snno, nSeg0 int) *Result {
	nAngles := e.cfg.Scanner.NAngles
	nBins := e.cfg.Scanner.NBins
	res := &Result{
		Sino:  models.NewSinogram3D(snno, nAngles, nBins),
		Scale: make([]float64, nSeg0),
	}
	if opts.ReturnUninterpolated {
		res.Uninterpolated = out.Values
		res.BinIndices = out.BinIndices
	}
	if opts.ReturnSSR {
		res.SSR = models.NewSinogram3D(nSeg0, nAngles, nBins)
	}
	if opts.ReturnMasks {
		res.Masks = make([][]bool, nSeg0)
		for i := range res.Masks {
			res.Masks[i] = make([]bool, nAngles*nBins)
		}
	}
	return res
}

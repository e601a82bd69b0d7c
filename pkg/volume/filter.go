// Package volume provides the image-domain helpers of the scatter pipeline:
// isotropic Gaussian smoothing, resampling to the coarse scatter-modelling
// grid and threshold mask construction.
package volume

import (
	"fmt"
	"math"

	"petscatter/internal/models"
)

// FWHMToSigma converts a full-width-at-half-maximum in cm to a Gaussian
// sigma in voxels for the given voxel size.
func FWHMToSigma(fwhm, voxelSize float64) float64 {
	return (fwhm / voxelSize) / (2 * math.Sqrt(2*math.Log(2)))
}

// gaussianKernel builds a normalized 1D Gaussian kernel truncated at 4
// standard deviations.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(4 * sigma))
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// mirror reflects an out-of-range index about the array ends without
// repeating the edge sample.
func mirror(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i = ((i % period) + period) % period
	if i >= n {
		i = period - i
	}
	return i
}

// GaussianSmooth3D applies an isotropic Gaussian filter with the given
// sigma (in voxels) separably along all three axes, using mirror boundary
// handling. The input volume is not modified.
func GaussianSmooth3D(v *models.Volume, sigma float64) *models.Volume {
	if sigma <= 0 {
		return v.Clone()
	}
	k := gaussianKernel(sigma)
	radius := len(k) / 2

	out := v.Clone()
	tmp := models.NewVolume(v.NX, v.NY, v.NZ)

	// x pass
	for z := 0; z < v.NZ; z++ {
		for y := 0; y < v.NY; y++ {
			for x := 0; x < v.NX; x++ {
				acc := 0.0
				for j := -radius; j <= radius; j++ {
					acc += k[j+radius] * out.At(mirror(x+j, v.NX), y, z)
				}
				tmp.Set(x, y, z, acc)
			}
		}
	}
	// y pass
	for z := 0; z < v.NZ; z++ {
		for y := 0; y < v.NY; y++ {
			for x := 0; x < v.NX; x++ {
				acc := 0.0
				for j := -radius; j <= radius; j++ {
					acc += k[j+radius] * tmp.At(x, mirror(y+j, v.NY), z)
				}
				out.Set(x, y, z, acc)
			}
		}
	}
	// z pass
	for z := 0; z < v.NZ; z++ {
		for y := 0; y < v.NY; y++ {
			for x := 0; x < v.NX; x++ {
				acc := 0.0
				for j := -radius; j <= radius; j++ {
					acc += k[j+radius] * out.At(x, y, mirror(z+j, v.NZ))
				}
				tmp.Set(x, y, z, acc)
			}
		}
	}

	tmp.VoxelXY = v.VoxelXY
	tmp.VoxelZ = v.VoxelZ
	return tmp
}

// catmullRom is the cubic convolution kernel used for resampling.
func catmullRom(t float64) float64 {
	t = math.Abs(t)
	switch {
	case t < 1:
		return 1.5*t*t*t - 2.5*t*t + 1
	case t < 2:
		return -0.5*t*t*t + 2.5*t*t - 4*t + 2
	default:
		return 0
	}
}

// Zoom resamples a volume by the per-axis scale factors (z, y, x order)
// using separable cubic-convolution interpolation. It is used to take the
// mu-map and emission image down to the coarse scatter-modelling grid.
func Zoom(v *models.Volume, scale [3]float64) (*models.Volume, error) {
	for _, s := range scale {
		if s <= 0 {
			return nil, fmt.Errorf("volume: zoom factors must be positive, got %v", scale)
		}
	}
	nz := int(math.Round(float64(v.NZ) * scale[0]))
	ny := int(math.Round(float64(v.NY) * scale[1]))
	nx := int(math.Round(float64(v.NX) * scale[2]))
	if nz < 1 || ny < 1 || nx < 1 {
		return nil, fmt.Errorf("volume: zoom factors %v collapse volume %dx%dx%d",
			scale, v.NX, v.NY, v.NZ)
	}

	resample := func(src []float64, nIn, nOut int) []float64 {
		if nIn == nOut {
			out := make([]float64, nIn)
			copy(out, src)
			return out
		}
		out := make([]float64, nOut)
		ratio := 0.0
		if nOut > 1 {
			ratio = float64(nIn-1) / float64(nOut-1)
		}
		for i := 0; i < nOut; i++ {
			x := float64(i) * ratio
			x0 := int(math.Floor(x))
			acc, wsum := 0.0, 0.0
			for j := x0 - 1; j <= x0+2; j++ {
				w := catmullRom(x - float64(j))
				if w == 0 {
					continue
				}
				acc += w * src[mirror(j, nIn)]
				wsum += w
			}
			out[i] = acc / wsum
		}
		return out
	}

	// x axis
	vx := models.NewVolume(nx, v.NY, v.NZ)
	line := make([]float64, v.NX)
	for z := 0; z < v.NZ; z++ {
		for y := 0; y < v.NY; y++ {
			for x := 0; x < v.NX; x++ {
				line[x] = v.At(x, y, z)
			}
			for x, val := range resample(line, v.NX, nx) {
				vx.Set(x, y, z, val)
			}
		}
	}
	// y axis
	vy := models.NewVolume(nx, ny, v.NZ)
	line = make([]float64, v.NY)
	for z := 0; z < v.NZ; z++ {
		for x := 0; x < nx; x++ {
			for y := 0; y < v.NY; y++ {
				line[y] = vx.At(x, y, z)
			}
			for y, val := range resample(line, v.NY, ny) {
				vy.Set(x, y, z, val)
			}
		}
	}
	// z axis
	vz := models.NewVolume(nx, ny, nz)
	line = make([]float64, v.NZ)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			for z := 0; z < v.NZ; z++ {
				line[z] = vy.At(x, y, z)
			}
			for z, val := range resample(line, v.NZ, nz) {
				vz.Set(x, y, z, val)
			}
		}
	}

	vz.VoxelXY = v.VoxelXY
	vz.VoxelZ = v.VoxelZ
	return vz, nil
}

// MaskAbove returns a boolean mask of voxels strictly above the threshold.
func MaskAbove(v *models.Volume, threshold float64) []bool {
	mask := make([]bool, len(v.Data))
	for i, val := range v.Data {
		mask[i] = val > threshold
	}
	return mask
}

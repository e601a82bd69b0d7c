// Package visualization writes quality-control images of the scatter
// pipeline's intermediates: sinogram planes and image-volume slices as
// 16-bit grayscale PNGs.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"petscatter/internal/models"
)

// grayImage maps a data slab to a Gray16 image, scaling [0, max] onto the
// full intensity range. An all-zero slab renders black.
func grayImage(data []float64, width, height int, max float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := data[y*width+x]
			if v < 0 {
				v = 0
			}
			scaled := 0.0
			if max > 0 {
				scaled = v / max * 65535
			}
			if scaled > 65535 {
				scaled = 65535
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(scaled)})
		}
	}
	return img
}

func maxOf(data []float64) float64 {
	m := 0.0
	for _, v := range data {
		if v > m {
			m = v
		}
	}
	return m
}

// SinogramPlane renders one plane of a sinogram, radial bins across and
// angles down, scaled to the whole sinogram's maximum so planes are
// comparable.
func SinogramPlane(s *models.Sinogram3D, plane int) (image.Image, error) {
	if plane < 0 || plane >= s.NPlanes {
		return nil, fmt.Errorf("visualization: plane %d outside [0,%d)", plane, s.NPlanes)
	}
	return grayImage(s.Plane(plane), s.NBins, s.NAngles, maxOf(s.Data)), nil
}

// VolumeSlice renders one transaxial (XY) slice of a volume, scaled to the
// whole volume's maximum.
func VolumeSlice(v *models.Volume, z int) (image.Image, error) {
	if z < 0 || z >= v.NZ {
		return nil, fmt.Errorf("visualization: slice %d outside [0,%d)", z, v.NZ)
	}
	n := v.NX * v.NY
	return grayImage(v.Data[z*n:(z+1)*n], v.NX, v.NY, maxOf(v.Data)), nil
}

// SaveImage writes an image as PNG.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSinogram writes every plane of a sinogram into outputDir, one PNG
// per plane.
func SaveSinogram(s *models.Sinogram3D, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for p := 0; p < s.NPlanes; p++ {
		img, err := SinogramPlane(s, p)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("plane_%04d.png", p))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}

// SaveVolume writes every transaxial slice of a volume into outputDir, one
// PNG per slice.
func SaveVolume(v *models.Volume, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for z := 0; z < v.NZ; z++ {
		img, err := VolumeSlice(v, z)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z%03d.png", z))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}

package volume

import (
	"math"
	"testing"

	"petscatter/internal/models"
)

func constantVolume(nx, ny, nz int, v float64) *models.Volume {
	vol := models.NewVolume(nx, ny, nz)
	for i := range vol.Data {
		vol.Data[i] = v
	}
	return vol
}

func TestFWHMToSigma(t *testing.T) {
	// FWHM = 2*sqrt(2*ln2)*sigma
	got := FWHMToSigma(1, 1)
	want := 1 / (2 * math.Sqrt(2*math.Log(2)))
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("FWHMToSigma(1,1) = %g, want %g", got, want)
	}

	// voxel size scales the result into voxel units
	if got := FWHMToSigma(1, 0.5); math.Abs(got-2*want) > 1e-12 {
		t.Errorf("FWHMToSigma(1,0.5) = %g, want %g", got, 2*want)
	}
}

func TestGaussianSmoothPreservesConstant(t *testing.T) {
	v := constantVolume(12, 10, 8, 3.25)
	out := GaussianSmooth3D(v, 1.5)
	for i, val := range out.Data {
		if math.Abs(val-3.25) > 1e-12 {
			t.Fatalf("Voxel %d changed from 3.25 to %g", i, val)
		}
	}
}

func TestGaussianSmoothPreservesImpulseMass(t *testing.T) {
	v := models.NewVolume(31, 31, 31)
	v.Set(15, 15, 15, 1)

	out := GaussianSmooth3D(v, 1.2)
	sum := 0.0
	for _, val := range out.Data {
		if val < 0 {
			t.Fatal("Smoothing produced a negative value")
		}
		sum += val
	}
	// the kernel support fits inside the volume, so mass is conserved
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Impulse mass after smoothing = %g, want 1", sum)
	}
}

func TestGaussianSmoothZeroSigma(t *testing.T) {
	v := constantVolume(4, 4, 4, 1)
	v.Set(1, 2, 3, 9)

	out := GaussianSmooth3D(v, 0)
	if &out.Data[0] == &v.Data[0] {
		t.Fatal("Zero-sigma smoothing aliases the input")
	}
	for i := range v.Data {
		if out.Data[i] != v.Data[i] {
			t.Fatalf("Zero-sigma smoothing changed voxel %d", i)
		}
	}
}

func TestGaussianSmoothLeavesInputUntouched(t *testing.T) {
	v := models.NewVolume(9, 9, 9)
	v.Set(4, 4, 4, 1)
	GaussianSmooth3D(v, 2)
	for i, val := range v.Data {
		want := 0.0
		if i == (4*9+4)*9+4 {
			want = 1
		}
		if val != want {
			t.Fatalf("Input voxel %d modified to %g", i, val)
		}
	}
}

func TestMirror(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{0, 5, 0},
		{4, 5, 4},
		{-1, 5, 1},
		{-2, 5, 2},
		{5, 5, 3},
		{6, 5, 2},
		{8, 5, 0},
		{3, 1, 0},
	}
	for _, tt := range tests {
		if got := mirror(tt.i, tt.n); got != tt.want {
			t.Errorf("mirror(%d,%d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestZoomIdentity(t *testing.T) {
	v := models.NewVolume(6, 5, 4)
	for i := range v.Data {
		v.Data[i] = float64(i)
	}
	out, err := Zoom(v, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Zoom failed: %v", err)
	}
	if out.NX != 6 || out.NY != 5 || out.NZ != 4 {
		t.Fatalf("Identity zoom changed dimensions to %dx%dx%d", out.NX, out.NY, out.NZ)
	}
	for i := range v.Data {
		if out.Data[i] != v.Data[i] {
			t.Fatalf("Identity zoom changed voxel %d", i)
		}
	}
}

func TestZoomConstant(t *testing.T) {
	v := constantVolume(16, 16, 8, 2.5)
	out, err := Zoom(v, [3]float64{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatalf("Zoom failed: %v", err)
	}
	if out.NX != 8 || out.NY != 8 || out.NZ != 4 {
		t.Fatalf("Half zoom gave %dx%dx%d", out.NX, out.NY, out.NZ)
	}
	for i, val := range out.Data {
		if math.Abs(val-2.5) > 1e-9 {
			t.Fatalf("Voxel %d of a constant volume resampled to %g", i, val)
		}
	}
}

func TestZoomLinearRamp(t *testing.T) {
	// cubic convolution reproduces a linear ramp away from the borders
	v := models.NewVolume(17, 3, 3)
	for z := 0; z < 3; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 17; x++ {
				v.Set(x, y, z, float64(x))
			}
		}
	}
	out, err := Zoom(v, [3]float64{1, 1, 2})
	if err != nil {
		t.Fatalf("Zoom failed: %v", err)
	}
	ratio := float64(17-1) / float64(out.NX-1)
	for x := 4; x < out.NX-4; x++ {
		want := float64(x) * ratio
		if got := out.At(x, 1, 1); math.Abs(got-want) > 1e-9 {
			t.Fatalf("Ramp sample %d resampled to %g, want %g", x, got, want)
		}
	}
}

func TestZoomBadScale(t *testing.T) {
	v := constantVolume(4, 4, 4, 1)
	if _, err := Zoom(v, [3]float64{0, 1, 1}); err == nil {
		t.Error("Expected error for zero zoom factor")
	}
	if _, err := Zoom(v, [3]float64{1, -0.5, 1}); err == nil {
		t.Error("Expected error for negative zoom factor")
	}
}

func TestMaskAbove(t *testing.T) {
	v := models.NewVolume(2, 2, 1)
	copy(v.Data, []float64{0, 0.003, 0.0031, 1})
	mask := MaskAbove(v, 0.003)
	want := []bool{false, false, true, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("Mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}

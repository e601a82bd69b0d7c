package models

// Sinogram3D represents a stack of 2D sinogram planes as a 1D array in
// plane-major order: Data[plane*NAngles*NBins + angle*NBins + bin].
type Sinogram3D struct {
	// Data is the sinogram data as a 1D array
	Data []float64

	// NPlanes is the number of axial planes
	NPlanes int

	// NAngles is the number of projection angles per plane
	NAngles int

	// NBins is the number of radial bins per angle
	NBins int
}

// NewSinogram3D allocates a zero-filled sinogram stack.
func NewSinogram3D(nPlanes, nAngles, nBins int) *Sinogram3D {
	return &Sinogram3D{
		Data:    make([]float64, nPlanes*nAngles*nBins),
		NPlanes: nPlanes,
		NAngles: nAngles,
		NBins:   nBins,
	}
}

// Plane returns the backing slice of a single plane. The returned slice
// aliases the sinogram data.
func (s *Sinogram3D) Plane(i int) []float64 {
	n := s.NAngles * s.NBins
	return s.Data[i*n : (i+1)*n]
}

// At returns the value at (plane, angle, bin).
func (s *Sinogram3D) At(plane, angle, bin int) float64 {
	return s.Data[(plane*s.NAngles+angle)*s.NBins+bin]
}

// Set stores a value at (plane, angle, bin).
func (s *Sinogram3D) Set(plane, angle, bin int, v float64) {
	s.Data[(plane*s.NAngles+angle)*s.NBins+bin] = v
}

// Volume represents a 3D image volume (mu-map or emission estimate) as a
// 1D array in z-major order: Data[z*NX*NY + y*NX + x].
type Volume struct {
	// Data is the voxel data as a 1D array
	Data []float64

	// NX, NY, NZ are the volume dimensions in voxels
	NX, NY, NZ int

	// VoxelXY and VoxelZ are the physical voxel sizes in cm
	VoxelXY, VoxelZ float64
}

// NewVolume allocates a zero-filled volume.
func NewVolume(nx, ny, nz int) *Volume {
	return &Volume{
		Data: make([]float64, nx*ny*nz),
		NX:   nx,
		NY:   ny,
		NZ:   nz,
	}
}

// At returns the voxel value at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[(z*v.NY+y)*v.NX+x]
}

// Set stores a voxel value at (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[(z*v.NY+y)*v.NX+x] = val
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data:    make([]float64, len(v.Data)),
		NX:      v.NX,
		NY:      v.NY,
		NZ:      v.NZ,
		VoxelXY: v.VoxelXY,
		VoxelZ:  v.VoxelZ,
	}
	copy(out.Data, v.Data)
	return out
}

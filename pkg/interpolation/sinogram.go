package interpolation

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"petscatter/internal/models"
)

// ProgressCallback is a function that reports progress during interpolation.
type ProgressCallback func(completed, total int, message string)

// SinogramInterpolator densifies sparse per-sample scatter values into full
// angle x radial-bin sinogram planes. The triangulation over the sampled
// coordinates is built once and shared read-only across all planes; the
// per-plane evaluation runs on a worker pool.
type SinogramInterpolator struct {
	nAngles int
	nBins   int

	// indices is the per-crystal-pair sampled linear-index table; several
	// physical crystal pairs can map to the same (angle, bin) coordinate
	indices []int

	// points holds the unique sampled coordinates followed by the
	// angular-wrap padding points
	points  []Point
	nUnique int

	// valuePos maps each entry of indices to its position in points
	valuePos []int

	// padFrom maps each padding point to the unique point it mirrors
	padFrom []int

	tri     *Triangulation
	workers int

	progressCallback ProgressCallback
}

// NewSinogramInterpolator prepares the shared interpolation structure for
// the given sampled linear indices (angle*nBins + bin) and dense target
// dimensions. To avoid a seam at the angular wrap boundary, samples at
// angle 0 are duplicated as a virtual extra angular row past the last real
// angle, at the mirrored radial-bin position.
//
// A degenerate sample set (too few distinct coordinates for a
// triangulation) is a fatal precondition violation.
func NewSinogramInterpolator(indices []int, nAngles, nBins, workers int) (*SinogramInterpolator, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("interpolation: empty sampled-index table")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= nAngles*nBins {
			return nil, fmt.Errorf("interpolation: sampled index %d outside %dx%d sinogram",
				idx, nAngles, nBins)
		}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	si := &SinogramInterpolator{
		nAngles: nAngles,
		nBins:   nBins,
		indices: append([]int(nil), indices...),
		workers: workers,
	}

	// unique sampled indices, ascending
	unique := append([]int(nil), indices...)
	sort.Ints(unique)
	n := 0
	for i, idx := range unique {
		if i == 0 || idx != unique[n-1] {
			unique[n] = idx
			n++
		}
	}
	unique = unique[:n]
	si.nUnique = n

	pos := make(map[int]int, n)
	for i, idx := range unique {
		pos[idx] = i
	}
	si.valuePos = make([]int, len(indices))
	for i, idx := range indices {
		si.valuePos[i] = pos[idx]
	}

	si.points = make([]Point, n, n+n/8)
	for i, idx := range unique {
		ai := idx / nBins
		wi := idx % nBins
		si.points[i] = Point{X: float64(ai), Y: float64(wi)}
	}

	// angular wrap padding: angle-0 samples reappear past the last angle
	// at the mirrored radial-bin position
	for i, idx := range unique {
		ai := idx / nBins
		if ai != 0 {
			continue
		}
		wi := idx % nBins
		mirrored := nBins - 1 - wi
		if mirrored < 0 {
			mirrored = -mirrored
		}
		si.points = append(si.points, Point{X: float64(nAngles), Y: float64(mirrored)})
		si.padFrom = append(si.padFrom, i)
	}

	tri, err := Triangulate(si.points)
	if err != nil {
		return nil, fmt.Errorf("interpolation: building sample triangulation: %w", err)
	}
	si.tri = tri

	return si, nil
}

// SetProgressCallback sets a callback invoked as planes complete.
func (si *SinogramInterpolator) SetProgressCallback(cb ProgressCallback) {
	si.progressCallback = cb
}

// NSamples returns the number of entries of the sampled-index table.
func (si *SinogramInterpolator) NSamples() int { return len(si.indices) }

// Interpolate densifies the sparse scatter array into one dense plane per
// input plane, and folds each plane into the segment-grouped reduction
// sinogram given by planeToSegment (one segment index per plane).
//
// sparse is plane-major with one value per sampled-index-table entry:
// sparse[plane*NSamples() + pair]. Duplicate samples mapping to the same
// coordinate are summed. Interpolation artifacts (NaN from boundary
// regions, negative overshoots) are clamped to zero, since scatter is
// non-negative by definition.
//
// The per-plane work runs on the interpolator's worker pool; the reduction
// into the segment buffer happens on the calling goroutine after all
// workers have joined.
func (si *SinogramInterpolator) Interpolate(sparse []float64, nPlanes int, planeToSegment []int, nSegments int) (ssn, sssr *models.Sinogram3D, err error) {
	if len(sparse) != nPlanes*len(si.indices) {
		return nil, nil, fmt.Errorf("interpolation: sparse array has %d values, want %d planes x %d samples",
			len(sparse), nPlanes, len(si.indices))
	}
	if len(planeToSegment) < nPlanes {
		return nil, nil, fmt.Errorf("interpolation: plane-to-segment map covers %d planes, need %d",
			len(planeToSegment), nPlanes)
	}

	ssn = models.NewSinogram3D(nPlanes, si.nAngles, si.nBins)
	sssr = models.NewSinogram3D(nSegments, si.nAngles, si.nBins)

	planes := make(chan int)
	var wg sync.WaitGroup

	var progressMutex sync.Mutex
	completed := 0

	for w := 0; w < si.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// per-worker scratch for the accumulated sample values
			vals := make([]float64, len(si.points))

			for i := range planes {
				for j := range vals {
					vals[j] = 0
				}
				base := i * len(si.indices)
				for ti, p := range si.valuePos {
					vals[p] += sparse[base+ti]
				}
				for k, src := range si.padFrom {
					vals[si.nUnique+k] = vals[src]
				}

				ct := NewCloughTocher(si.tri, vals)

				// each worker writes only its own plane
				out := ssn.Plane(i)
				for a := 0; a < si.nAngles; a++ {
					row := out[a*si.nBins : (a+1)*si.nBins]
					for b := 0; b < si.nBins; b++ {
						v := ct.At(float64(a), float64(b))
						if v < 0 {
							v = 0
						}
						row[b] = v
					}
				}

				if si.progressCallback != nil {
					progressMutex.Lock()
					completed++
					c := completed
					progressMutex.Unlock()
					si.progressCallback(c, nPlanes, "")
				}
			}
		}()
	}

	for i := 0; i < nPlanes; i++ {
		planes <- i
	}
	close(planes)
	wg.Wait()

	// sequential fold into the segment-grouped sinogram
	for i := 0; i < nPlanes; i++ {
		seg := planeToSegment[i]
		if seg < 0 || seg >= nSegments {
			return nil, nil, fmt.Errorf("interpolation: plane %d maps to segment %d outside [0,%d)",
				i, seg, nSegments)
		}
		dst := sssr.Plane(seg)
		src := ssn.Plane(i)
		for j := range dst {
			dst[j] += src[j]
		}
	}

	return ssn, sssr, nil
}

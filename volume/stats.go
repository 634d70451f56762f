package volume

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises the intensity distribution of a sampler.
type Stats struct {
	Mean, StdDev float64
	Min, Max     float64
	Count        int
}

// Statistics computes the global mean and (sample) standard deviation of s
// together with its intensity range. It reads every voxel once, one z-slice
// at a time, and merges the per-slice moments.
//
// Complexity: O(W×H×D) time, O(W×H) memory.
func Statistics(s Sampler) Stats {
	w, h, d := s.Bounds()
	plane := w * h
	buf := make([]float64, plane)
	vol, dense := s.(*Volume)

	var (
		n        int
		mean, m2 float64
	)
	for z := 0; z < d; z++ {
		if dense {
			for i, x := range vol.data[z*plane : (z+1)*plane] {
				buf[i] = float64(x)
			}
		} else {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					buf[y*w+x] = s.Sample(x, y, z)
				}
			}
		}
		sm, sv := stat.MeanVariance(buf, nil)
		sm2 := 0.0
		if plane > 1 {
			sm2 = sv * float64(plane-1)
		}
		// Pairwise merge of (n, mean, m2) with the slice's moments.
		total := n + plane
		delta := sm - mean
		mean += delta * float64(plane) / float64(total)
		m2 += sm2 + delta*delta*float64(n)*float64(plane)/float64(total)
		n = total
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(m2 / float64(n-1))
	}
	lo, hi := s.IntensityRange()

	return Stats{Mean: mean, StdDev: std, Min: lo, Max: hi, Count: n}
}

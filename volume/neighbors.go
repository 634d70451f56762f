package volume

import "math"

var (
	offsets2D = buildOffsets(false)
	offsets3D = buildOffsets(true)
)

// buildOffsets enumerates every non-zero displacement in {-1,0,1}^k with a
// fixed z→y→x order so expansion order is deterministic.
func buildOffsets(threeD bool) []Offset {
	zs := []int{0}
	if threeD {
		zs = []int{-1, 0, 1}
	}
	out := make([]Offset, 0, 26)
	for _, dz := range zs {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, Offset{DX: dx, DY: dy, DZ: dz})
			}
		}
	}

	return out
}

// Offsets returns the 26-connected neighbourhood for volumes with depth > 1
// and the 8-connected in-plane neighbourhood for 2D images.
// The returned slice is shared and must not be modified.
func Offsets(s Sampler) []Offset {
	if Is2D(s) {
		return offsets2D
	}

	return offsets3D
}

// StepLength returns the physical length of the displacement o.
func StepLength(sp Spacing, o Offset) float64 {
	x := float64(o.DX) * sp.DX
	y := float64(o.DY) * sp.DY
	z := float64(o.DZ) * sp.DZ

	return math.Sqrt(x*x + y*y + z*z)
}

// StepLengths precomputes StepLength for each offset, aligned by position.
func StepLengths(sp Spacing, offs []Offset) []float64 {
	out := make([]float64, len(offs))
	for i, o := range offs {
		out[i] = StepLength(sp, o)
	}

	return out
}

// Distance returns the calibrated Euclidean distance between a and b.
func Distance(sp Spacing, a, b Coord) float64 {
	return StepLength(sp, Offset{DX: b.X - a.X, DY: b.Y - a.Y, DZ: b.Z - a.Z})
}

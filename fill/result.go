package fill

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/katalvlaran/neurite/volume"
)

// Result is a settled flood.
type Result struct {
	Width, Height, Depth int

	// Mask holds the row-major index of every settled voxel.
	Mask *roaring.Bitmap
	// Distances maps each settled voxel index to its cost-distance.
	Distances map[uint32]float64
	// Prev maps a settled non-seed voxel to its predecessor; nil unless
	// WithReturnPath was given.
	Prev map[uint32]uint32
	// Stats counts the work done.
	Stats Stats
}

func (r *Result) index(c volume.Coord) (uint32, bool) {
	if c.X < 0 || c.Y < 0 || c.Z < 0 || c.X >= r.Width || c.Y >= r.Height || c.Z >= r.Depth {
		return 0, false
	}

	return uint32((c.Z*r.Height+c.Y)*r.Width + c.X), true
}

func (r *Result) coord(idx uint32) volume.Coord {
	i := int(idx)
	plane := r.Width * r.Height
	rem := i % plane

	return volume.Coord{X: rem % r.Width, Y: rem / r.Width, Z: i / plane}
}

// Len returns the number of filled voxels.
func (r *Result) Len() int { return int(r.Mask.GetCardinality()) }

// Contains reports whether c was filled.
func (r *Result) Contains(c volume.Coord) bool {
	idx, ok := r.index(c)
	return ok && r.Mask.Contains(idx)
}

// Distance returns the cost-distance of c, or +Inf if c was not filled.
func (r *Result) Distance(c volume.Coord) float64 {
	idx, ok := r.index(c)
	if !ok {
		return math.Inf(1)
	}
	d, ok := r.Distances[idx]
	if !ok {
		return math.Inf(1)
	}

	return d
}

// Voxels returns the filled voxels in row-major order.
func (r *Result) Voxels() []volume.Coord {
	out := make([]volume.Coord, 0, r.Len())
	it := r.Mask.Iterator()
	for it.HasNext() {
		out = append(out, r.coord(it.Next()))
	}

	return out
}

// PathToSeed walks predecessors from c back to its nearest seed. It returns
// nil if c was not filled or predecessors were not kept.
func (r *Result) PathToSeed(c volume.Coord) []volume.Coord {
	idx, ok := r.index(c)
	if !ok || r.Prev == nil || !r.Mask.Contains(idx) {
		return nil
	}
	out := []volume.Coord{c}
	for {
		p, ok := r.Prev[idx]
		if !ok {
			return out
		}
		out = append(out, r.coord(p))
		idx = p
	}
}

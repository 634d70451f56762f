package search

import (
	"github.com/katalvlaran/neurite/volume"
)

// Point is a calibrated path vertex. Radius is carried for consumers that
// estimate it; the search leaves it zero.
type Point struct {
	X, Y, Z float64
	Radius  float64
}

// Path is an ordered centreline from start to goal.
type Path struct {
	// Points are calibrated positions (voxel × spacing).
	Points []Point
	// Coords are the voxel addresses, aligned with Points.
	Coords []volume.Coord
	// Cumulative holds the accumulated cost at each point; Cumulative[0] is 0.
	Cumulative []float64
}

// Len returns the number of points.
func (p *Path) Len() int { return len(p.Coords) }

// Length returns the calibrated polyline length.
func (p *Path) Length(sp volume.Spacing) float64 {
	var total float64
	for i := 1; i < len(p.Coords); i++ {
		total += volume.Distance(sp, p.Coords[i-1], p.Coords[i])
	}

	return total
}

// tracePath joins the start-side predecessor chain ending at a with the
// goal-side chain beginning at b. For unidirectional search a == b == goal.
func (s *Search) tracePath(st store, a, b int) *Path {
	var head []int
	for idx := a; ; {
		head = append(head, idx)
		p := st.lookup(idx).pred[fwd]
		if p == 0 {
			break
		}
		idx = p - 1
	}
	for i, j := 0, len(head)-1; i < j; i, j = i+1, j-1 {
		head[i], head[j] = head[j], head[i]
	}

	idx := b
	if a == b {
		idx = st.lookup(b).pred[bwd] - 1
	}
	for idx >= 0 {
		head = append(head, idx)
		idx = st.lookup(idx).pred[bwd] - 1
	}

	coords := make([]volume.Coord, len(head))
	for i, v := range head {
		coords[i] = s.coord(v)
	}

	return s.buildPath(coords)
}

// buildPath calibrates coords and accumulates the edge cost along them.
func (s *Search) buildPath(coords []volume.Coord) *Path {
	p := &Path{
		Coords:     coords,
		Points:     make([]Point, len(coords)),
		Cumulative: make([]float64, len(coords)),
	}
	for i, c := range coords {
		p.Points[i] = Point{
			X: float64(c.X) * s.spacing.DX,
			Y: float64(c.Y) * s.spacing.DY,
			Z: float64(c.Z) * s.spacing.DZ,
		}
		if i > 0 {
			step := volume.Distance(s.spacing, coords[i-1], c)
			p.Cumulative[i] = p.Cumulative[i-1] + s.model.At(c)*step
		}
	}

	return p
}

// Reverse returns the path ordered from goal to start. Cumulative reuses the
// forward edge increments in reverse order, so the total is unchanged.
func (p *Path) Reverse() *Path {
	n := p.Len()
	out := &Path{
		Points:     make([]Point, n),
		Coords:     make([]volume.Coord, n),
		Cumulative: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		out.Points[i] = p.Points[n-1-i]
		out.Coords[i] = p.Coords[n-1-i]
	}
	for i := 1; i < n; i++ {
		j := n - i
		out.Cumulative[i] = out.Cumulative[i-1] + (p.Cumulative[j] - p.Cumulative[j-1])
	}

	return out
}

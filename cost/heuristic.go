package cost

import (
	"fmt"

	"github.com/katalvlaran/neurite/volume"
)

// Heuristic estimates a lower bound of the remaining cost between two voxels.
type Heuristic interface {
	Estimate(from, to volume.Coord) float64
}

// NewHeuristic builds a heuristic for the given spacing and cost function.
func NewHeuristic(kind HeuristicKind, sp volume.Spacing, fn Function) (Heuristic, error) {
	switch kind {
	case Euclidean:
		if fn == nil {
			return nil, fmt.Errorf("%w: euclidean heuristic needs a cost function", ErrUnknownHeuristic)
		}
		return EuclideanHeuristic{Spacing: sp, Scale: fn.MinCost()}, nil
	case Zero:
		return ZeroHeuristic{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHeuristic, kind)
	}
}

// EuclideanHeuristic is the calibrated straight-line distance scaled by the
// cost function's lower bound. Every step of physical length L costs at
// least Scale·L, so the estimate never exceeds the true remaining cost and
// satisfies the triangle inequality.
type EuclideanHeuristic struct {
	Spacing volume.Spacing
	Scale   float64
}

// Estimate implements Heuristic.
func (h EuclideanHeuristic) Estimate(from, to volume.Coord) float64 {
	return h.Scale * volume.Distance(h.Spacing, from, to)
}

// ZeroHeuristic turns A* into Dijkstra.
type ZeroHeuristic struct{}

// Estimate implements Heuristic.
func (ZeroHeuristic) Estimate(_, _ volume.Coord) float64 { return 0 }

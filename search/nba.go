package search

import (
	"context"

	"github.com/katalvlaran/neurite/volume"
)

// meeting is the best known connection between the two frontiers: a is
// reached from start, b from goal, and a == b or a and b are neighbours.
type meeting struct {
	a, b int
	cost float64
}

// estimate returns the heuristic of direction d at c: toward goal for fwd,
// toward start for bwd.
func (s *Search) estimate(d int, c volume.Coord) float64 {
	if d == fwd {
		return s.heuristic.Estimate(c, s.goal)
	}

	return s.heuristic.Estimate(c, s.start)
}

// runBidirectional is NBA*. Each side keeps its own open set and g values.
// A node popped by one side leaves the shared middle set and is marked
// CLOSED for that side; the other side then skips it. A popped node x of
// side d is pruned without expansion when
//
//	g_d(x) + h_d(x) ≥ L   or   g_d(x) + F_o − h_o(x) ≥ L
//
// where L is the best connection cost, o the other side and F_o its
// smallest f. The search ends when either open set empties or either
// minimum f reaches L; L is then optimal.
//
// Edge costs are those of the forward graph: the goal side relaxing
// x → y charges cost(x)·|xy| because the path runs y → x.
func (s *Search) runBidirectional(ctx context.Context) Result {
	st := s.newStore()
	pqs := [2]*openSet{newOpenSet(s.openCapacity()), newOpenSet(s.openCapacity())}
	best := meeting{a: -1, b: -1, cost: inf}

	origin := [2]int{s.index(s.start), s.index(s.goal)}
	for d := fwd; d <= bwd; d++ {
		n := st.at(origin[d])
		n.g[d] = 0
		n.state[d] = open
		n.item[d] = pqs[d].push(origin[d], 0, s.estimate(d, s.coord(origin[d])))
		s.stats.Opened++
	}

	last := bwd
	for pqs[fwd].Len() > 0 && pqs[bwd].Len() > 0 {
		if res, stop := s.interrupted(ctx); stop {
			return res
		}

		minF := [2]float64{pqs[fwd].minF(), pqs[bwd].minF()}
		if minF[fwd] >= best.cost || minF[bwd] >= best.cost {
			break
		}

		d := fwd
		switch {
		case minF[bwd] < minF[fwd]:
			d = bwd
		case minF[bwd] == minF[fwd]:
			d = 1 - last
		}
		last = d
		o := 1 - d

		it := pqs[d].pop()
		x := st.at(it.idx)
		x.item[d] = nil
		if x.state[o] == closed {
			st.close(d, it.idx)
			continue
		}
		st.close(d, it.idx)
		s.stats.Closed++

		xc := s.coord(it.idx)
		if x.g[d]+s.estimate(d, xc) >= best.cost ||
			x.g[d]+pqs[o].minF()-s.estimate(o, xc) >= best.cost {
			continue
		}

		s.stats.Expanded++
		s.expand(st, pqs[d], d, it.idx, xc, x, &best)
		s.report()
	}

	if best.a < 0 {
		return Result{Status: Failed, Err: ErrExhausted}
	}
	path := s.tracePath(st, best.a, best.b)

	return Result{Status: Succeeded, Path: path, Cost: path.Cumulative[path.Len()-1]}
}

// expand relaxes the neighbours of x for side d and records any cheaper
// connection to the other side.
func (s *Search) expand(st store, pq *openSet, d, xIdx int, xc volume.Coord, x *node, best *meeting) {
	o := 1 - d
	xCost := 0.0
	if d == bwd {
		xCost = s.model.At(xc)
	}

	for k, off := range s.offsets {
		yc := xc.Add(off)
		if !s.inBounds(yc) {
			continue
		}
		yIdx := s.index(yc)

		var edge float64
		if d == fwd {
			edge = s.model.At(yc) * s.steps[k]
		} else {
			edge = xCost * s.steps[k]
		}
		g := x.g[d] + edge

		y := st.at(yIdx)
		if y.state[o] == closed || st.isClosed(d, yIdx) {
			if y.reached(o) {
				s.connect(d, xIdx, yIdx, g+y.g[o], best)
			}
			continue
		}
		if y.reached(d) && g >= y.g[d] {
			continue
		}

		y.g[d] = g
		y.pred[d] = xIdx + 1
		f := g + s.estimate(d, yc)
		if y.item[d] != nil {
			pq.update(y.item[d], g, f)
		} else {
			y.state[d] = open
			y.item[d] = pq.push(yIdx, g, f)
			s.stats.Opened++
		}
		if y.reached(o) {
			s.connect(d, yIdx, yIdx, g+y.g[o], best)
		}
	}
}

// connect records a candidate joining side d's node near with the other
// side's node far when it beats the best known cost.
func (s *Search) connect(d, near, far int, total float64, best *meeting) {
	if total >= best.cost {
		return
	}
	best.cost = total
	if d == fwd {
		best.a, best.b = near, far
	} else {
		best.a, best.b = far, near
	}
}

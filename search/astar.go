package search

import "context"

// runUnidirectional is A* from start to goal. Nodes are closed when popped;
// with a consistent heuristic a CLOSED g is final, so closed neighbours are
// never revisited.
func (s *Search) runUnidirectional(ctx context.Context) Result {
	st := s.newStore()
	pq := newOpenSet(s.openCapacity())
	goalIdx := s.index(s.goal)

	startIdx := s.index(s.start)
	sn := st.at(startIdx)
	sn.g[fwd] = 0
	sn.state[fwd] = open
	sn.item[fwd] = pq.push(startIdx, 0, s.heuristic.Estimate(s.start, s.goal))
	s.stats.Opened++

	for pq.Len() > 0 {
		if res, stop := s.interrupted(ctx); stop {
			return res
		}

		it := pq.pop()
		cur := st.at(it.idx)
		cur.item[fwd] = nil
		st.close(fwd, it.idx)
		s.stats.Closed++

		if it.idx == goalIdx {
			path := s.tracePath(st, it.idx, it.idx)
			return Result{Status: Succeeded, Path: path, Cost: cur.g[fwd]}
		}

		s.stats.Expanded++
		c := s.coord(it.idx)
		for k, off := range s.offsets {
			nc := c.Add(off)
			if !s.inBounds(nc) {
				continue
			}
			nIdx := s.index(nc)
			if st.isClosed(fwd, nIdx) {
				continue
			}

			g := cur.g[fwd] + s.model.At(nc)*s.steps[k]
			nb := st.at(nIdx)
			if nb.reached(fwd) && g >= nb.g[fwd] {
				continue
			}
			nb.g[fwd] = g
			nb.pred[fwd] = it.idx + 1
			f := g + s.heuristic.Estimate(nc, s.goal)
			if nb.item[fwd] != nil {
				pq.update(nb.item[fwd], g, f)
				continue
			}
			nb.state[fwd] = open
			nb.item[fwd] = pq.push(nIdx, g, f)
			s.stats.Opened++
		}
		s.report()
	}

	return Result{Status: Failed, Err: ErrExhausted}
}

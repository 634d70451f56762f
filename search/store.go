package search

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// membership of a node in one direction's search.
type membership uint8

const (
	unexplored membership = iota
	open
	closed
)

// Direction indices. fwd grows from start, bwd from goal.
const (
	fwd = 0
	bwd = 1
)

// node is the per-voxel search record. Fields are indexed by direction;
// unidirectional search only touches fwd. g is meaningful only when
// state[d] != unexplored.
type node struct {
	g     [2]float64
	pred  [2]int // voxel index + 1; 0 means none
	item  [2]*item
	state [2]membership
	seen  bool
}

func (n *node) reached(d int) bool { return n.state[d] != unexplored }

// store owns node records for one search.
type store interface {
	// at returns the record for idx, creating it unexplored if absent.
	at(idx int) *node
	// lookup returns the record for idx or nil.
	lookup(idx int) *node
	// close marks idx CLOSED in direction d.
	close(d, idx int)
	// isClosed reports whether idx is CLOSED in direction d.
	isClosed(d, idx int) bool
	// touched returns the number of records created.
	touched() int
}

// denseStore is a flat arena with one record per voxel.
type denseStore struct {
	nodes []node
	n     int
}

func newDenseStore(size int) *denseStore {
	return &denseStore{nodes: make([]node, size)}
}

func (s *denseStore) at(idx int) *node {
	nd := &s.nodes[idx]
	if !nd.seen {
		nd.seen = true
		s.n++
	}

	return nd
}

func (s *denseStore) lookup(idx int) *node {
	if nd := &s.nodes[idx]; nd.seen {
		return nd
	}

	return nil
}

func (s *denseStore) close(d, idx int) { s.nodes[idx].state[d] = closed }

func (s *denseStore) isClosed(d, idx int) bool { return s.nodes[idx].state[d] == closed }

func (s *denseStore) touched() int { return s.n }

// sparseStore keeps records only for voxels the search has reached. CLOSED
// membership is mirrored into one roaring bitmap per direction so the hot
// closed-check avoids the map.
type sparseStore struct {
	nodes  map[int]*node
	closed [2]*roaring64.Bitmap
}

func newSparseStore(hint int) *sparseStore {
	return &sparseStore{
		nodes:  make(map[int]*node, hint),
		closed: [2]*roaring64.Bitmap{roaring64.New(), roaring64.New()},
	}
}

func (s *sparseStore) at(idx int) *node {
	nd, ok := s.nodes[idx]
	if !ok {
		nd = &node{seen: true}
		s.nodes[idx] = nd
	}

	return nd
}

func (s *sparseStore) lookup(idx int) *node { return s.nodes[idx] }

func (s *sparseStore) close(d, idx int) {
	s.at(idx).state[d] = closed
	s.closed[d].Add(uint64(idx))
}

func (s *sparseStore) isClosed(d, idx int) bool { return s.closed[d].Contains(uint64(idx)) }

func (s *sparseStore) touched() int { return len(s.nodes) }

// newStore resolves StoreAuto against the voxel count.
func newStore(kind StoreKind, voxels int, opts Options) store {
	hint := opts.MinPathSize * 26
	switch kind {
	case StoreDense:
		return newDenseStore(voxels)
	case StoreSparse:
		return newSparseStore(hint)
	default:
		if voxels <= opts.DenseLimit {
			return newDenseStore(voxels)
		}
		return newSparseStore(hint)
	}
}

package fill

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/volume"
)

// Fill computes cost-distances from the nearest seed to every voxel within
// MaxDistance. Seeds start at distance 0 and duplicates are ignored.
//
// Preconditions and validation (in order):
//  1. model and its sampler must be non-nil (ErrNilModel).
//  2. seeds must be non-empty (ErrNoSeeds).
//  3. the volume must hold ≤ 2³² voxels (ErrVolumeTooLarge).
//  4. every seed must be inside the volume (volume.ErrOutOfBounds).
//
// The context is polled once per settled voxel; on cancellation Fill
// returns ctx.Err() and no result.
func Fill(ctx context.Context, model *cost.Model, seeds []volume.Coord, opts ...Option) (*Result, error) {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if model == nil || model.Sampler == nil || model.Fn == nil {
		return nil, ErrNilModel
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	w, h, d := model.Sampler.Bounds()
	if uint64(w)*uint64(h)*uint64(d) > math.MaxUint32+1 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrVolumeTooLarge, w, h, d)
	}
	for i, s := range seeds {
		if err := volume.CheckBounds(model.Sampler, s); err != nil {
			return nil, fmt.Errorf("fill: seed %d: %w", i, err)
		}
	}

	sp := volume.SpacingOf(model.Sampler)
	offs := volume.Offsets(model.Sampler)
	r := &runner{
		model:   model,
		options: cfg,
		w:       w,
		h:       h,
		d:       d,
		offsets: offs,
		steps:   volume.StepLengths(sp, offs),
		dist:    make(map[uint32]float64),
		visited: roaring.New(),
		pq:      make(nodePQ, 0, len(seeds)),
	}
	if cfg.ReturnPath {
		r.prev = make(map[uint32]uint32)
	}

	r.init(seeds)
	if err := r.process(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		Width:     w,
		Height:    h,
		Depth:     d,
		Mask:      r.visited,
		Distances: make(map[uint32]float64, r.visited.GetCardinality()),
		Prev:      r.prev,
		Stats:     r.stats,
	}
	// Only settled voxels belong to the result; tentative entries beyond
	// MaxDistance are dropped.
	it := r.visited.Iterator()
	for it.HasNext() {
		idx := it.Next()
		res.Distances[idx] = r.dist[idx]
	}
	if r.prev != nil {
		for idx := range r.prev {
			if !r.visited.Contains(idx) {
				delete(r.prev, idx)
			}
		}
	}

	return res, nil
}

// runner holds the mutable state for a single flood.
type runner struct {
	model   *cost.Model
	options Options
	w, h, d int
	offsets []volume.Offset
	steps   []float64

	dist    map[uint32]float64 // best known distance per voxel
	prev    map[uint32]uint32  // predecessor toward the nearest seed; nil unless ReturnPath
	visited *roaring.Bitmap    // settled voxels
	pq      nodePQ             // lazy min-heap
	stats   Stats
}

func (r *runner) index(c volume.Coord) uint32 {
	return uint32((c.Z*r.h+c.Y)*r.w + c.X)
}

func (r *runner) coord(idx uint32) volume.Coord {
	i := int(idx)
	plane := r.w * r.h
	rem := i % plane

	return volume.Coord{X: rem % r.w, Y: rem / r.w, Z: i / plane}
}

// init pushes every seed at distance 0. Seeds that are walls still seed
// the flood; only entering a wall is forbidden.
func (r *runner) init(seeds []volume.Coord) {
	heap.Init(&r.pq)
	for _, s := range seeds {
		idx := r.index(s)
		if _, ok := r.dist[idx]; ok {
			continue
		}
		r.dist[idx] = 0
		heap.Push(&r.pq, &nodeItem{id: idx, dist: 0})
		r.stats.Pushed++
	}
}

// process settles voxels in increasing distance until the heap empties or
// the smallest distance exceeds MaxDistance.
func (r *runner) process(ctx context.Context) error {
	for r.pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := heap.Pop(&r.pq).(*nodeItem)
		if r.visited.Contains(item.id) {
			continue
		}
		if item.dist > r.options.MaxDistance {
			break
		}
		r.visited.Add(item.id)
		r.stats.Settled++
		r.relax(item.id, item.dist)
	}

	return nil
}

// relax offers every in-bounds, unsettled, passable neighbour of u a new
// distance through u.
func (r *runner) relax(u uint32, du float64) {
	uc := r.coord(u)
	for k, off := range r.offsets {
		vc := uc.Add(off)
		if vc.X < 0 || vc.Y < 0 || vc.Z < 0 || vc.X >= r.w || vc.Y >= r.h || vc.Z >= r.d {
			continue
		}
		v := r.index(vc)
		if r.visited.Contains(v) {
			continue
		}

		c := r.model.At(vc)
		if c >= r.options.InfCostThreshold {
			continue
		}
		nd := du + c*r.steps[k]
		if nd > r.options.MaxDistance {
			continue
		}
		if old, ok := r.dist[v]; ok && nd >= old {
			continue
		}

		r.dist[v] = nd
		if r.prev != nil {
			r.prev[v] = u
		}
		heap.Push(&r.pq, &nodeItem{id: v, dist: nd})
		r.stats.Pushed++
	}
}

// nodeItem is a voxel and its tentative distance.
type nodeItem struct {
	id   uint32
	dist float64
}

// nodePQ is a min-heap of *nodeItem. Improved distances are pushed again
// and the stale entry is skipped when popped (visited check).
type nodePQ []*nodeItem

func (pq nodePQ) Len() int { return len(pq) }

func (pq nodePQ) Less(i, j int) bool { return pq[i].dist < pq[j].dist }

func (pq nodePQ) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *nodePQ) Push(x interface{}) { *pq = append(*pq, x.(*nodeItem)) }

func (pq *nodePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]

	return item
}

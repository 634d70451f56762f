package search

import "container/heap"

// item is one OPEN entry. index is its heap position and is kept current
// by Swap so a revised f can be restored with heap.Fix.
type item struct {
	idx   int     // voxel index
	f     float64 // g + h
	g     float64 // tie-break: prefer deeper nodes on equal f
	index int
}

// openSet is a min-heap of *item ordered by f, then by larger g.
type openSet []*item

func (pq openSet) Len() int { return len(pq) }

func (pq openSet) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}

	return pq[i].g > pq[j].g
}

func (pq openSet) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *openSet) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *openSet) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]

	return it
}

func newOpenSet(capacity int) *openSet {
	pq := make(openSet, 0, capacity)
	return &pq
}

// push inserts a new entry and returns it.
func (pq *openSet) push(idx int, g, f float64) *item {
	it := &item{idx: idx, g: g, f: f}
	heap.Push(pq, it)

	return it
}

// update revises an existing entry in place.
func (pq *openSet) update(it *item, g, f float64) {
	it.g, it.f = g, f
	heap.Fix(pq, it.index)
}

// pop removes the entry with the smallest f.
func (pq *openSet) pop() *item { return heap.Pop(pq).(*item) }

// minF returns the smallest f, or +Inf when empty.
func (pq openSet) minF() float64 {
	if len(pq) == 0 {
		return inf
	}

	return pq[0].f
}

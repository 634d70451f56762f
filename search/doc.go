// Package search finds the cheapest voxel path between two grid coordinates
// over a cost.Model.
//
// Modes:
//
//   - Unidirectional: single-frontier A* from start to goal.
//   - Bidirectional:  NBA* with one frontier from each end, meeting in the
//     middle. Both modes return the same optimum under an admissible,
//     consistent heuristic.
//
// Graph:
//
//	Voxels are 26-connected in 3D and 8-connected in 2D. Entering voxel v
//	from u costs model.At(v) × |u−v| (calibrated distance), so axis-aligned
//	and diagonal steps are comparable.
//
// Node state:
//
//	Each search owns a node store sized to the volume: a dense arena for
//	volumes up to DenseLimit voxels, otherwise a sparse map with roaring
//	bitmaps for CLOSED membership. Nodes hold g, predecessor and OPEN/CLOSED
//	membership per direction; the open set is an indexed binary heap so a
//	cost revision of an OPEN node updates its position in place.
//
// Lifecycle:
//
//	Ready → Running → {Succeeded, Failed, Cancelled}
//
// Cancellation is cooperative: the context is polled at the top of every
// expansion, so Cancelled is observed within one further expansion.
// Exhaustion of the open set is a normal Failed outcome (ErrExhausted).
//
// Complexity:
//
//   - Time:  O(N log N) worst case, N = voxels explored.
//   - Space: O(V) dense or O(N) sparse.
package search

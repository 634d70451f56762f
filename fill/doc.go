// Package fill floods a cost model outward from seed voxels with Dijkstra's
// algorithm, marking every voxel whose cost-distance to the nearest seed is
// within a threshold. Seeded from a traced path, the filled region is the
// neurite volume around that centreline.
//
// The flood uses the same graph as package search: 26-connected voxels in
// 3D, 8-connected in 2D, entering voxel v costs model.At(v) × step length.
//
// Complexity:
//
//   - Time:  O(N log N), N = voxels within MaxDistance.
//   - Space: O(N) for distances and the heap (lazy decrease-key).
//
// Options:
//
//   - MaxDistance:      voxels farther than this are not settled.
//   - InfCostThreshold: voxels whose cost is ≥ this are walls.
//   - ReturnPath:       keep predecessors so PathToSeed works.
//
// Errors (sentinel):
//
//   - ErrNoSeeds         if no seed voxel was given.
//   - ErrNilModel        if the cost model is nil.
//   - ErrVolumeTooLarge  if voxel indices do not fit a uint32 bitmap.
//   - ErrBadMaxDistance  if MaxDistance < 0 (option panics).
//   - ErrBadInfThreshold if InfCostThreshold ≤ 0 (option panics).
//
// Example usage:
//
//	res, err := fill.Fill(ctx, model, path.Coords,
//	    fill.WithMaxDistance(2.5),
//	    fill.WithReturnPath(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Mask.GetCardinality(), "voxels")
package fill

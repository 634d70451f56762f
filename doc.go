// Package neurite finds the centreline of a filament (a neurite, a vessel)
// between two points of a 2D or 3D image stack by a best-first search over
// a voxel cost field.
//
// What is in the box?
//
//	• Volumes: calibrated scalar stacks, 26/8-neighbourhoods, statistics
//	• Ridge filters: Hessian tubeness and Frangi vesselness, multi-scale
//	• Costs: reciprocal, probability (1−erf), difference, curvature
//	• Search: A* and bidirectional NBA* with dense or sparse node stores
//	• Fill: multi-seed Dijkstra flood with a cost-distance threshold
//	• Tracer: worker pool, cancellation, progress sinks, image-reload guard
//
// Packages:
//
//	volume/       Coord, Spacing, Sampler, Volume and neighbour offsets
//	hessian/      Gaussian derivatives, eigen-based filters, shared field cache
//	cost/         cost models and admissible heuristics
//	search/       A*, NBA*, node stores, open set, Path
//	fill/         Dijkstra flood over the same cost field
//	stack/        TIFF/PNG/JPEG slice loading
//	tracer/       orchestration: Submit, AutoTrace, Fill, Filter, SetImages
//	cmd/neurite   the command-line front end (trace, filter, fill)
//
// A bright line along x:
//
//	. . . . . . . . .
//	S ━ ━ ━ ━ ━ ━ ━ G
//	. . . . . . . . .
//
// costs almost nothing to follow, so the search stays on it.
//
//	go install github.com/katalvlaran/neurite/cmd/neurite@latest
package neurite

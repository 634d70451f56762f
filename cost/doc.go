// Package cost maps voxel values to traversal costs and estimates remaining
// cost for heuristic search.
//
// Functions (closed set, selected by Kind):
//
//   - Reciprocal:        1 / (s + ε)                favours bright voxels
//   - Probability:       max(ε, erfc(zFudge·z))     z-score against global stats
//   - Difference:        (255 − s)/255 + ε          linear intensity inversion
//   - DifferenceSquared: ((255 − s)/255)² + ε       quadratic inversion
//   - Curvature:         1 / max(ε, m·response)     reads a hessian.Field
//
// where s is the value clamped to [Min, Max] and rescaled to 0–255.
// Every function returns strictly positive, finite costs; NaN or infinite
// inputs cost MaxCost. MinCost is a lower bound over the whole input range
// and scales the Euclidean heuristic so it never overestimates.
//
// Heuristics:
//
//   - Euclidean: calibrated distance × MinCost (admissible and consistent).
//   - Zero:      always 0 (plain Dijkstra ordering).
package cost

// Package hessian computes curvature-based ridge responses over a voxel grid
// and caches them for the path-search core.
//
// What:
//
//   - Compute derives the scale-normalised Hessian of a volume by separable
//     Gaussian-derivative convolution and scores each voxel by how closely
//     its eigenvalues match a bright tubular structure.
//   - Tubeness is the single-scale Sato-style response: σ²·sqrt(λ2·λ3) in
//     3D (σ²·|λ2| in 2D) where the cross-sectional eigenvalues are negative.
//   - Frangi is the multi-scale vesselness response (α = β = 0.5, c = half
//     the maximum Hessian norm per scale); the best scale wins per voxel.
//   - Field is the same-shape result. It implements volume.Sampler, so cost
//     functions read it exactly as they read raw intensity.
//   - Cache memoises one Field per (role, kind), runs computations on their
//     own goroutines and publishes results atomically.
//
// Progress:
//
//	Progress callbacks receive monotonically increasing values in [0,1].
//	A value < 0 signals failure or cancellation, a value ≥ 1 completion.
//
// Complexity:
//
//   - Convolution: O(N·r) per derivative pass, r = kernel radius (≈3σ).
//   - Eigen analysis: O(N) symmetric 3×3 (or 2×2) decompositions per scale.
//   - Memory: O(N) float64 buffers for the six Hessian components.
//
// Errors:
//
//   - ErrNoSigma, ErrBadSigma, ErrTooManySigmas: invalid scale sets.
//   - ErrUnknownKind: filter kind not Tubeness or Frangi.
//   - ErrComputationFailed: a cached computation failed or was cancelled.
//   - ErrBadSnapshot, ErrUnknownCodec: corrupt or unsupported field snapshots.
package hessian

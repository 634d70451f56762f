package fill

import (
	"errors"
	"math"
)

// Sentinel errors returned by Fill.
var (
	// ErrNoSeeds indicates that the seed list is empty.
	ErrNoSeeds = errors.New("fill: at least one seed voxel is required")

	// ErrNilModel indicates a nil cost model or sampler.
	ErrNilModel = errors.New("fill: cost model is nil")

	// ErrVolumeTooLarge indicates a volume with more than 2³² voxels.
	ErrVolumeTooLarge = errors.New("fill: volume too large for a 32-bit voxel mask")

	// ErrBadMaxDistance indicates a negative MaxDistance.
	ErrBadMaxDistance = errors.New("fill: MaxDistance must be non-negative")

	// ErrBadInfThreshold indicates a zero or negative InfCostThreshold.
	ErrBadInfThreshold = errors.New("fill: InfCostThreshold must be positive")
)

// Options configures Fill.
//
// MaxDistance      – cost-distance cap; ≥ 0. Default +Inf (flood everything reachable).
// InfCostThreshold – voxels with cost ≥ this are impassable; > 0. Default +Inf.
// ReturnPath       – if true, Result.Prev is populated.
type Options struct {
	MaxDistance      float64
	InfCostThreshold float64
	ReturnPath       bool
}

// Option is a functional option for Fill.
type Option func(*Options)

// WithMaxDistance caps the cost-distance of filled voxels.
// Panics with ErrBadMaxDistance if max < 0 or NaN.
func WithMaxDistance(max float64) Option {
	return func(o *Options) {
		if !(max >= 0) {
			panic(ErrBadMaxDistance.Error())
		}
		o.MaxDistance = max
	}
}

// WithInfCostThreshold treats voxels whose cost is ≥ threshold as walls.
// Panics with ErrBadInfThreshold if threshold ≤ 0 or NaN.
func WithInfCostThreshold(threshold float64) Option {
	return func(o *Options) {
		if !(threshold > 0) {
			panic(ErrBadInfThreshold.Error())
		}
		o.InfCostThreshold = threshold
	}
}

// WithReturnPath keeps predecessors in the result.
func WithReturnPath() Option {
	return func(o *Options) {
		o.ReturnPath = true
	}
}

// DefaultOptions returns an unbounded flood without predecessors.
func DefaultOptions() Options {
	return Options{
		MaxDistance:      math.Inf(1),
		InfCostThreshold: math.Inf(1),
	}
}

// Stats counts flood work.
type Stats struct {
	// Settled is the number of voxels whose distance became final.
	Settled int
	// Pushed is the number of heap insertions including stale entries.
	Pushed int
}

package search

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/volume"
)

var inf = math.Inf(1)

// Result is the terminal outcome of Run.
type Result struct {
	// Status is Succeeded, Failed or Cancelled.
	Status Status
	// Path is the traced centreline; nil unless Succeeded.
	Path *Path
	// Cost is the accumulated edge cost along Path.
	Cost float64
	// Stats counts the work done.
	Stats Stats
	// Err explains Failed and Cancelled outcomes.
	Err error
}

// Search is a single-use path search between two voxels.
// Run must be called at most once; Status may be read concurrently.
type Search struct {
	mode        Mode
	model       *cost.Model
	heuristic   cost.Heuristic
	start, goal volume.Coord
	opts        Options

	width, height, depth int
	spacing              volume.Spacing
	offsets              []volume.Offset
	steps                []float64

	status   atomic.Int32
	stats    Stats
	progress *rate.Sometimes
}

// New validates the request and returns a Ready search. Endpoints outside
// the volume wrap volume.ErrOutOfBounds.
func New(mode Mode, model *cost.Model, h cost.Heuristic, start, goal volume.Coord, opts ...Option) (*Search, error) {
	if mode != Unidirectional && mode != Bidirectional {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
	if model == nil || model.Sampler == nil || model.Fn == nil {
		return nil, ErrNilModel
	}
	if h == nil {
		return nil, ErrNilHeuristic
	}
	if err := volume.CheckBounds(model.Sampler, start); err != nil {
		return nil, fmt.Errorf("search: start: %w", err)
	}
	if err := volume.CheckBounds(model.Sampler, goal); err != nil {
		return nil, fmt.Errorf("search: goal: %w", err)
	}
	if start == goal {
		return nil, fmt.Errorf("%w: %s", ErrSameEndpoints, start)
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Search{
		mode:      mode,
		model:     model,
		heuristic: h,
		start:     start,
		goal:      goal,
		opts:      o,
		spacing:   volume.SpacingOf(model.Sampler),
		offsets:   volume.Offsets(model.Sampler),
	}
	s.width, s.height, s.depth = model.Sampler.Bounds()
	s.steps = volume.StepLengths(s.spacing, s.offsets)
	switch {
	case o.Progress == nil:
	case o.ProgressInterval == 0:
		// A zero Sometimes fires only once; Every: 1 fires on every call.
		s.progress = &rate.Sometimes{Every: 1}
	default:
		s.progress = &rate.Sometimes{Interval: o.ProgressInterval}
	}

	return s, nil
}

// Mode returns the configured algorithm.
func (s *Search) Mode() Mode { return s.mode }

// Start returns the start voxel.
func (s *Search) Start() volume.Coord { return s.start }

// Goal returns the goal voxel.
func (s *Search) Goal() volume.Coord { return s.goal }

// Status returns the current lifecycle state.
func (s *Search) Status() Status { return Status(s.status.Load()) }

// Run executes the search until it succeeds, fails or ctx ends. The node
// store is released when Run returns.
func (s *Search) Run(ctx context.Context) Result {
	if !s.status.CompareAndSwap(int32(Ready), int32(Running)) {
		return Result{Status: Failed, Err: ErrAlreadyRun}
	}

	var res Result
	if s.mode == Bidirectional {
		res = s.runBidirectional(ctx)
	} else {
		res = s.runUnidirectional(ctx)
	}
	res.Stats = s.stats
	if s.opts.Progress != nil {
		s.opts.Progress(s.stats.Opened, s.stats.Closed)
	}
	s.status.Store(int32(res.Status))

	return res
}

// index maps c to its row-major voxel index.
func (s *Search) index(c volume.Coord) int {
	return (c.Z*s.height+c.Y)*s.width + c.X
}

// coord is the inverse of index.
func (s *Search) coord(idx int) volume.Coord {
	plane := s.width * s.height
	rem := idx % plane

	return volume.Coord{X: rem % s.width, Y: rem / s.width, Z: idx / plane}
}

func (s *Search) inBounds(c volume.Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 && c.X < s.width && c.Y < s.height && c.Z < s.depth
}

func (s *Search) newStore() store {
	return newStore(s.opts.Store, s.width*s.height*s.depth, s.opts)
}

func (s *Search) openCapacity() int {
	if s.opts.MinPathSize > 0 {
		return s.opts.MinPathSize * len(s.offsets)
	}

	return len(s.offsets)
}

// interrupted reports a terminal condition checked at the top of every
// expansion: context end or the expansion cap.
func (s *Search) interrupted(ctx context.Context) (Result, bool) {
	select {
	case <-ctx.Done():
		return Result{Status: Cancelled, Err: ctx.Err()}, true
	default:
	}
	if s.opts.MaxExpansions > 0 && s.stats.Expanded >= s.opts.MaxExpansions {
		return Result{Status: Failed, Err: fmt.Errorf("%w: %d", ErrExpansionLimit, s.stats.Expanded)}, true
	}

	return Result{}, false
}

func (s *Search) report() {
	if s.progress == nil {
		return
	}
	s.progress.Do(func() { s.opts.Progress(s.stats.Opened, s.stats.Closed) })
}

package tracer

import (
	"errors"
	"runtime"
	"time"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/hessian"
	"github.com/katalvlaran/neurite/internal/logging"
	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/volume"
)

// Sentinel errors returned by the tracer.
var (
	// ErrBusy indicates an image reload while searches or filters run.
	ErrBusy = errors.New("tracer: searches or filter computations in flight")
	// ErrNoImage indicates a request against an image that is not loaded.
	ErrNoImage = errors.New("tracer: image not loaded")
	// ErrFilterFailed indicates that the ridge filter a curvature cost
	// depends on failed or was discarded.
	ErrFilterFailed = errors.New("tracer: ridge filter failed")
	// ErrClosed indicates use of a closed Tracer.
	ErrClosed = errors.New("tracer: closed")
	// ErrTooFewPoints indicates an AutoTrace point list shorter than two.
	ErrTooFewPoints = errors.New("tracer: auto-trace needs at least two points")
)

// Request describes one search.
type Request struct {
	Start, Goal volume.Coord
	// Mode selects A* or NBA*.
	Mode search.Mode
	// Source selects the image the cost reads (or the filter runs on).
	Source hessian.Role
	// Cost selects the cost function; Curvature requires Filter.
	Cost cost.Kind
	// CostParams carries tuning knobs; bounds and statistics are derived
	// from the image.
	CostParams cost.Params
	// Heuristic selects the search heuristic.
	Heuristic cost.HeuristicKind
	// Filter selects the ridge filter for Curvature costs.
	Filter hessian.Params
	// MaxExpansions caps the search; 0 means unlimited.
	MaxExpansions int
	// MinPathSize hints the expected path length.
	MinPathSize int
}

// Sink receives search notifications. Calls for one search are sequential
// and OnFinished is called exactly once, last.
type Sink interface {
	OnProgress(opened, closed int)
	OnFinished(res search.Result)
}

// SinkFuncs adapts two functions to a Sink; nil fields are skipped.
type SinkFuncs struct {
	Progress func(opened, closed int)
	Finished func(res search.Result)
}

// OnProgress implements Sink.
func (s SinkFuncs) OnProgress(opened, closed int) {
	if s.Progress != nil {
		s.Progress(opened, closed)
	}
}

// OnFinished implements Sink.
func (s SinkFuncs) OnFinished(res search.Result) {
	if s.Finished != nil {
		s.Finished(res)
	}
}

// Options configures a Tracer.
type Options struct {
	// Workers bounds concurrently running searches.
	Workers int
	// FilterWorkers bounds the parallelism of each filter computation.
	FilterWorkers int
	// ProgressInterval is the minimum time between progress reports.
	ProgressInterval time.Duration
	// DenseLimit is the voxel count up to which searches use a dense store.
	DenseLimit int
	// Logger receives lifecycle events.
	Logger *logging.Logger
}

// Option is a functional option for New.
type Option func(*Options)

// WithWorkers bounds concurrently running searches. Panics if n < 1.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n < 1 {
			panic("tracer: workers must be ≥ 1")
		}
		o.Workers = n
	}
}

// WithFilterWorkers bounds each filter computation. Panics if n < 1.
func WithFilterWorkers(n int) Option {
	return func(o *Options) {
		if n < 1 {
			panic("tracer: filter workers must be ≥ 1")
		}
		o.FilterWorkers = n
	}
}

// WithProgressInterval sets the search progress interval. Panics if d < 0.
func WithProgressInterval(d time.Duration) Option {
	return func(o *Options) {
		if d < 0 {
			panic("tracer: progress interval must be ≥ 0")
		}
		o.ProgressInterval = d
	}
}

// WithDenseLimit sets the dense-store threshold. Panics if n < 0.
func WithDenseLimit(n int) Option {
	return func(o *Options) {
		if n < 0 {
			panic("tracer: dense limit must be ≥ 0")
		}
		o.DenseLimit = n
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logging.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// DefaultOptions sizes both pools to runtime.NumCPU() and uses the search
// package defaults.
func DefaultOptions() Options {
	return Options{
		Workers:          runtime.NumCPU(),
		FilterWorkers:    runtime.NumCPU(),
		ProgressInterval: search.DefaultProgressInterval,
		DenseLimit:       search.DefaultDenseLimit,
	}
}

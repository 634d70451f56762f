package search

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned by the search package.
var (
	// ErrNilModel indicates a nil cost model or sampler.
	ErrNilModel = errors.New("search: cost model is nil")
	// ErrNilHeuristic indicates a nil heuristic.
	ErrNilHeuristic = errors.New("search: heuristic is nil")
	// ErrSameEndpoints indicates start == goal.
	ErrSameEndpoints = errors.New("search: start equals goal")
	// ErrUnknownMode indicates a mode other than Unidirectional or Bidirectional.
	ErrUnknownMode = errors.New("search: unknown search mode")
	// ErrExhausted indicates the open set emptied without reaching the goal.
	ErrExhausted = errors.New("search: no path between start and goal")
	// ErrExpansionLimit indicates that MaxExpansions was reached.
	ErrExpansionLimit = errors.New("search: expansion limit reached")
	// ErrAlreadyRun indicates Run was called twice on the same search.
	ErrAlreadyRun = errors.New("search: search already run")
)

// Status is the lifecycle state of a search.
type Status int32

const (
	// Ready means constructed but not started.
	Ready Status = iota
	// Running means the expansion loop is active.
	Running
	// Succeeded means a path was found.
	Succeeded
	// Failed means no path was found (exhaustion, limit or upstream failure).
	Failed
	// Cancelled means the context ended before termination.
	Cancelled
)

var statusNames = [...]string{"ready", "running", "succeeded", "failed", "cancelled"}

// String returns the lower-case status name.
func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("status(%d)", int32(s))
}

// Terminal reports whether s is Succeeded, Failed or Cancelled.
func (s Status) Terminal() bool { return s >= Succeeded }

// Mode selects the search algorithm.
type Mode uint8

const (
	// Unidirectional is single-frontier A*.
	Unidirectional Mode = iota + 1
	// Bidirectional is NBA*.
	Bidirectional
)

// String returns "unidirectional" or "bidirectional".
func (m Mode) String() string {
	switch m {
	case Unidirectional:
		return "unidirectional"
	case Bidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode maps a name to a Mode ("astar" and "nba" are accepted aliases).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unidirectional", "uni", "astar", "a*":
		return Unidirectional, nil
	case "bidirectional", "bi", "nba", "nba*":
		return Bidirectional, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// StoreKind selects the node-state backing.
type StoreKind uint8

const (
	// StoreAuto picks Dense when the volume has at most DenseLimit voxels.
	StoreAuto StoreKind = iota
	// StoreDense is a flat arena indexed by voxel (fast, O(V) memory).
	StoreDense
	// StoreSparse is a map plus roaring bitmaps (slower, O(explored) memory).
	StoreSparse
)

// Stats counts search work. Opened counts nodes first inserted into an open
// set, Closed counts nodes removed from it, Expanded counts nodes whose
// neighbours were relaxed.
type Stats struct {
	Opened, Closed, Expanded int
}

// ProgressFunc receives throttled (opened, closed) counters.
type ProgressFunc func(opened, closed int)

// Default option values.
const (
	DefaultDenseLimit       = 1 << 24
	DefaultProgressInterval = 100 * time.Millisecond
)

// Options configures a search.
type Options struct {
	// Store selects the node-state backing.
	Store StoreKind
	// DenseLimit is the voxel count up to which StoreAuto picks Dense.
	DenseLimit int
	// Progress receives throttled counters; nil disables reporting.
	Progress ProgressFunc
	// ProgressInterval is the minimum time between progress reports.
	ProgressInterval time.Duration
	// MaxExpansions stops the search with ErrExpansionLimit; 0 means unlimited.
	MaxExpansions int
	// MinPathSize hints the expected path length in voxels and presizes
	// the open set and sparse storage.
	MinPathSize int
}

// Option is a functional option for New.
type Option func(*Options)

// WithStore forces a node-state backing.
func WithStore(k StoreKind) Option {
	return func(o *Options) { o.Store = k }
}

// WithDenseLimit sets the StoreAuto threshold. Panics if n < 0.
func WithDenseLimit(n int) Option {
	return func(o *Options) {
		if n < 0 {
			panic("search: dense limit must be ≥ 0")
		}
		o.DenseLimit = n
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) { o.Progress = fn }
}

// WithProgressInterval sets the minimum reporting interval. Panics if d < 0.
func WithProgressInterval(d time.Duration) Option {
	return func(o *Options) {
		if d < 0 {
			panic("search: progress interval must be ≥ 0")
		}
		o.ProgressInterval = d
	}
}

// WithMaxExpansions caps the number of expanded nodes. Panics if n < 0.
func WithMaxExpansions(n int) Option {
	return func(o *Options) {
		if n < 0 {
			panic("search: max expansions must be ≥ 0")
		}
		o.MaxExpansions = n
	}
}

// WithMinPathSize sets the expected path length hint. Panics if n < 0.
func WithMinPathSize(n int) Option {
	return func(o *Options) {
		if n < 0 {
			panic("search: min path size must be ≥ 0")
		}
		o.MinPathSize = n
	}
}

// DefaultOptions returns StoreAuto, DenseLimit=16Mi voxels, 100ms progress
// interval and no expansion cap.
func DefaultOptions() Options {
	return Options{
		Store:            StoreAuto,
		DenseLimit:       DefaultDenseLimit,
		ProgressInterval: DefaultProgressInterval,
	}
}

package hessian

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
)

// Sentinel errors returned by the hessian package.
var (
	// ErrNoSigma indicates an empty scale set.
	ErrNoSigma = errors.New("hessian: at least one sigma is required")
	// ErrBadSigma indicates a sigma ≤ 0, NaN or infinite.
	ErrBadSigma = errors.New("hessian: sigma must be positive and finite")
	// ErrTooManySigmas indicates more than one sigma for the single-scale Tubeness filter.
	ErrTooManySigmas = errors.New("hessian: tubeness takes exactly one sigma")
	// ErrUnknownKind indicates a filter kind outside {Tubeness, Frangi}.
	ErrUnknownKind = errors.New("hessian: unknown filter kind")
	// ErrComputationFailed indicates that the filter computation backing a cache
	// entry failed or was cancelled.
	ErrComputationFailed = errors.New("hessian: filter computation failed")
	// ErrBadSnapshot indicates a malformed field snapshot.
	ErrBadSnapshot = errors.New("hessian: malformed field snapshot")
	// ErrUnknownCodec indicates an unsupported snapshot codec.
	ErrUnknownCodec = errors.New("hessian: unknown snapshot codec")
)

// Kind selects the ridge response.
type Kind uint8

const (
	// Tubeness is the single-scale ridge response.
	Tubeness Kind = iota + 1
	// Frangi is the multi-scale vesselness response.
	Frangi
)

// String returns the lower-case filter name.
func (k Kind) String() string {
	switch k {
	case Tubeness:
		return "tubeness"
	case Frangi:
		return "frangi"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps "tubeness" or "frangi" (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tubeness":
		return Tubeness, nil
	case "frangi", "vesselness":
		return Frangi, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Role identifies which image a cached field was derived from.
type Role uint8

const (
	// Primary is the image being traced.
	Primary Role = iota
	// Secondary is an optional second (e.g. pre-filtered) image.
	Secondary
)

// String returns "primary" or "secondary".
func (r Role) String() string {
	if r == Secondary {
		return "secondary"
	}

	return "primary"
}

// Params selects the filter and its scales. Sigmas are in calibrated units.
type Params struct {
	Kind   Kind
	Sigmas []float64
}

// Validate checks the kind and the scale set.
func (p Params) Validate() error {
	if p.Kind != Tubeness && p.Kind != Frangi {
		return fmt.Errorf("%w: %d", ErrUnknownKind, p.Kind)
	}
	if len(p.Sigmas) == 0 {
		return ErrNoSigma
	}
	if p.Kind == Tubeness && len(p.Sigmas) > 1 {
		return fmt.Errorf("%w: got %d", ErrTooManySigmas, len(p.Sigmas))
	}
	for _, s := range p.Sigmas {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: %g", ErrBadSigma, s)
		}
	}

	return nil
}

// Equal reports whether p and q describe the same computation.
func (p Params) Equal(q Params) bool {
	if p.Kind != q.Kind || len(p.Sigmas) != len(q.Sigmas) {
		return false
	}
	for i := range p.Sigmas {
		if p.Sigmas[i] != q.Sigmas[i] {
			return false
		}
	}

	return true
}

func (p Params) clone() Params {
	return Params{Kind: p.Kind, Sigmas: append([]float64(nil), p.Sigmas...)}
}

// ProgressFunc receives fractional progress. Values < 0 signal failure,
// values ≥ 1 completion.
type ProgressFunc func(progress float64)

// Options configures Compute and Cache.
type Options struct {
	// Workers bounds slab parallelism. Default runtime.NumCPU().
	Workers int
	// Progress receives progress updates; nil disables reporting.
	Progress ProgressFunc
}

// Option is a functional option for Compute and NewCache.
type Option func(*Options)

// WithWorkers sets the number of goroutines used per computation.
// Panics if n < 1.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n < 1 {
			panic("hessian: workers must be ≥ 1")
		}
		o.Workers = n
	}
}

// WithProgress registers a progress callback for Compute.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) { o.Progress = fn }
}

// DefaultOptions returns Workers=runtime.NumCPU() and no progress callback.
func DefaultOptions() Options {
	return Options{Workers: runtime.NumCPU()}
}

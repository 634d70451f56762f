package cost

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the cost package.
var (
	// ErrUnknownKind indicates a cost function kind outside the closed set.
	ErrUnknownKind = errors.New("cost: unknown cost function kind")
	// ErrUnknownHeuristic indicates a heuristic kind outside the closed set.
	ErrUnknownHeuristic = errors.New("cost: unknown heuristic kind")
	// ErrBadBounds indicates NaN, infinite or inverted normalisation bounds.
	ErrBadBounds = errors.New("cost: normalisation bounds are invalid")
	// ErrBadParam indicates a non-positive epsilon, multiplier, z-fudge or std-dev.
	ErrBadParam = errors.New("cost: parameter must be positive and finite")
	// ErrNilSampler indicates a Model without a sampler.
	ErrNilSampler = errors.New("cost: sampler is nil")
	// ErrNilFunction indicates a Model without a cost function.
	ErrNilFunction = errors.New("cost: cost function is nil")
)

// MaxCost is the large-but-finite cost assigned to non-finite inputs.
const MaxCost = 1e6

// Default parameter values.
const (
	DefaultEpsilon    = 1e-3
	DefaultZFudge     = 0.8
	DefaultMultiplier = 4.0
	workingRange      = 255.0
)

// Kind selects a cost function.
type Kind uint8

const (
	// Reciprocal costs 1/(s+ε).
	Reciprocal Kind = iota + 1
	// Probability costs the complementary error function of the z-score.
	Probability
	// Difference costs the linear intensity inversion.
	Difference
	// DifferenceSquared costs the quadratic intensity inversion.
	DifferenceSquared
	// Curvature costs the reciprocal of a scaled ridge response.
	Curvature
)

var kindNames = map[Kind]string{
	Reciprocal:        "reciprocal",
	Probability:       "probability",
	Difference:        "difference",
	DifferenceSquared: "difference-squared",
	Curvature:         "curvature",
}

// String returns the canonical lower-case name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a name to a Kind. "one-minus-erf" is accepted for
// Probability; "tubeness" and "frangi" for Curvature.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reciprocal":
		return Reciprocal, nil
	case "probability", "one-minus-erf", "erf":
		return Probability, nil
	case "difference", "diff":
		return Difference, nil
	case "difference-squared", "diff-sq", "differencesq":
		return DifferenceSquared, nil
	case "curvature", "tubeness", "frangi":
		return Curvature, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Params carries the normalisation bounds and tuning knobs. Unused fields
// are ignored by a given Kind; zero Epsilon, ZFudge and Multiplier take
// their defaults.
type Params struct {
	// Min and Max bound the input values (intensity range or [0, field max]).
	Min, Max float64
	// Mean and StdDev describe the global intensity distribution (Probability).
	Mean, StdDev float64
	// ZFudge scales the z-score (Probability).
	ZFudge float64
	// Multiplier scales the ridge response (Curvature).
	Multiplier float64
	// Epsilon keeps costs strictly positive.
	Epsilon float64
}

func (p Params) withDefaults() Params {
	if p.Epsilon == 0 {
		p.Epsilon = DefaultEpsilon
	}
	if p.ZFudge == 0 {
		p.ZFudge = DefaultZFudge
	}
	if p.Multiplier == 0 {
		p.Multiplier = DefaultMultiplier
	}

	return p
}

// Function is a per-voxel cost.
type Function interface {
	// Cost maps a voxel value to a strictly positive, finite cost.
	Cost(v float64) float64
	// MinCost is a lower bound of Cost over the whole input domain.
	MinCost() float64
	// Kind identifies the variant.
	Kind() Kind
}

// HeuristicKind selects a heuristic.
type HeuristicKind uint8

const (
	// Euclidean scales calibrated straight-line distance by MinCost.
	Euclidean HeuristicKind = iota + 1
	// Zero disables the heuristic (Dijkstra ordering).
	Zero
)

// String returns "euclidean" or "zero".
func (k HeuristicKind) String() string {
	switch k {
	case Euclidean:
		return "euclidean"
	case Zero:
		return "zero"
	default:
		return fmt.Sprintf("heuristic(%d)", uint8(k))
	}
}

// ParseHeuristic maps a name to a HeuristicKind.
func ParseHeuristic(s string) (HeuristicKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "":
		return Euclidean, nil
	case "zero", "none", "dijkstra":
		return Zero, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownHeuristic, s)
	}
}

package cost

import (
	"fmt"
	"math"
)

// New builds the cost function of the given kind. Bounds and tuning
// parameters are validated here so searches never start with a function
// that could return zero, negative or NaN costs.
func New(kind Kind, p Params) (Function, error) {
	p = p.withDefaults()
	if math.IsNaN(p.Min) || math.IsNaN(p.Max) || math.IsInf(p.Min, 0) || math.IsInf(p.Max, 0) || p.Min > p.Max {
		return nil, fmt.Errorf("%w: [%g,%g]", ErrBadBounds, p.Min, p.Max)
	}
	if !positive(p.Epsilon) {
		return nil, fmt.Errorf("%w: epsilon=%g", ErrBadParam, p.Epsilon)
	}
	n := normaliser{min: p.Min, max: p.Max}

	switch kind {
	case Reciprocal:
		return reciprocal{n: n, eps: p.Epsilon}, nil
	case Probability:
		if !positive(p.ZFudge) {
			return nil, fmt.Errorf("%w: zfudge=%g", ErrBadParam, p.ZFudge)
		}
		if math.IsNaN(p.StdDev) || math.IsInf(p.StdDev, 0) || p.StdDev < 0 || math.IsNaN(p.Mean) || math.IsInf(p.Mean, 0) {
			return nil, fmt.Errorf("%w: mean=%g stddev=%g", ErrBadParam, p.Mean, p.StdDev)
		}
		return probability{n: n, mean: p.Mean, std: p.StdDev, zfudge: p.ZFudge, eps: p.Epsilon}, nil
	case Difference:
		return difference{n: n, eps: p.Epsilon}, nil
	case DifferenceSquared:
		return difference{n: n, eps: p.Epsilon, squared: true}, nil
	case Curvature:
		if !positive(p.Multiplier) {
			return nil, fmt.Errorf("%w: multiplier=%g", ErrBadParam, p.Multiplier)
		}
		return curvature{n: n, mult: p.Multiplier, eps: p.Epsilon}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

func positive(x float64) bool { return x > 0 && !math.IsInf(x, 0) }

// finite clamps a computed cost into (0, MaxCost].
func finite(c float64) float64 {
	if math.IsNaN(c) || c > MaxCost {
		return MaxCost
	}

	return c
}

type normaliser struct {
	min, max float64
}

func (n normaliser) clamp(v float64) float64 {
	return math.Min(math.Max(v, n.min), n.max)
}

// scaled maps v into [0, 255]. A degenerate range maps everything to 255.
func (n normaliser) scaled(v float64) float64 {
	if n.max <= n.min {
		return workingRange
	}

	return workingRange * (n.clamp(v) - n.min) / (n.max - n.min)
}

type reciprocal struct {
	n   normaliser
	eps float64
}

func (f reciprocal) Cost(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MaxCost
	}
	return finite(1 / (f.n.scaled(v) + f.eps))
}

func (f reciprocal) MinCost() float64 { return 1 / (workingRange + f.eps) }
func (f reciprocal) Kind() Kind       { return Reciprocal }

type probability struct {
	n                 normaliser
	mean, std, zfudge float64
	eps               float64
}

func (f probability) z(v float64) float64 {
	if f.std == 0 {
		return 0
	}
	return (f.n.clamp(v) - f.mean) / f.std
}

func (f probability) Cost(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MaxCost
	}
	return finite(math.Max(f.eps, math.Erfc(f.zfudge*f.z(v))))
}

func (f probability) MinCost() float64 {
	return math.Max(f.eps, math.Erfc(f.zfudge*f.z(f.n.max)))
}

func (f probability) Kind() Kind { return Probability }

type difference struct {
	n       normaliser
	eps     float64
	squared bool
}

func (f difference) Cost(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MaxCost
	}
	d := (workingRange - f.n.scaled(v)) / workingRange
	if f.squared {
		d *= d
	}
	return finite(d + f.eps)
}

func (f difference) MinCost() float64 { return f.eps }

func (f difference) Kind() Kind {
	if f.squared {
		return DifferenceSquared
	}
	return Difference
}

type curvature struct {
	n    normaliser
	mult float64
	eps  float64
}

func (f curvature) Cost(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MaxCost
	}
	return finite(1 / math.Max(f.eps, f.mult*f.n.clamp(v)))
}

func (f curvature) MinCost() float64 {
	return finite(1 / math.Max(f.eps, f.mult*f.n.max))
}

func (f curvature) Kind() Kind { return Curvature }

package cost

import (
	"github.com/katalvlaran/neurite/volume"
)

// Model binds a cost function to the sampler it reads.
type Model struct {
	Sampler volume.Sampler
	Fn      Function
}

// NewModel validates and returns a Model.
func NewModel(s volume.Sampler, fn Function) (*Model, error) {
	if s == nil {
		return nil, ErrNilSampler
	}
	if fn == nil {
		return nil, ErrNilFunction
	}

	return &Model{Sampler: s, Fn: fn}, nil
}

// At returns the cost of entering voxel c.
func (m *Model) At(c volume.Coord) float64 {
	return m.Fn.Cost(m.Sampler.Sample(c.X, c.Y, c.Z))
}

// ForSampler derives normalisation bounds from s and builds the function.
// Only Probability needs the global mean and standard deviation, which cost
// a full pass over s; callers that trace the same image repeatedly should
// compute volume.Statistics once and use FromStats.
func ForSampler(kind Kind, s volume.Sampler, p Params) (Function, error) {
	if s == nil {
		return nil, ErrNilSampler
	}
	var st volume.Stats
	if kind == Probability {
		st = volume.Statistics(s)
	} else {
		st.Min, st.Max = s.IntensityRange()
	}

	return FromStats(kind, st, p)
}

// FromStats builds the function from precomputed image statistics. Explicit
// non-zero tuning fields in p are kept.
func FromStats(kind Kind, st volume.Stats, p Params) (Function, error) {
	p.Min, p.Max = st.Min, st.Max
	p.Mean, p.StdDev = st.Mean, st.StdDev

	return New(kind, p)
}

package volume

import (
	"fmt"
	"math"
)

// Volume is a dense, in-memory Sampler. Data is stored row-major as float32.
// A Volume is safe for concurrent reads; Set must not race with readers.
type Volume struct {
	Width, Height, Depth int

	data     []float32
	spacing  Spacing
	min, max float64
}

// Option configures a Volume at construction time.
type Option func(*Volume)

// WithSpacing sets the voxel calibration. Non-positive values cause New to fail.
func WithSpacing(dx, dy, dz float64) Option {
	return func(v *Volume) {
		v.spacing = Spacing{DX: dx, DY: dy, DZ: dz}
	}
}

// New allocates a zero-filled Width×Height×Depth volume.
// Returns ErrEmptyVolume if any dimension is < 1 and ErrBadSpacing for an
// invalid calibration.
func New(width, height, depth int, opts ...Option) (*Volume, error) {
	if width < 1 || height < 1 || depth < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrEmptyVolume, width, height, depth)
	}
	v := &Volume{
		Width:   width,
		Height:  height,
		Depth:   depth,
		data:    make([]float32, width*height*depth),
		spacing: Isotropic(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := validateSpacing(v.spacing); err != nil {
		return nil, err
	}
	v.refreshRange()

	return v, nil
}

// FromData wraps an existing row-major slice without copying.
// The caller must not mutate data afterwards.
func FromData(width, height, depth int, data []float32, opts ...Option) (*Volume, error) {
	if len(data) == 0 {
		return nil, ErrEmptyVolume
	}
	if width < 1 || height < 1 || depth < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrEmptyVolume, width, height, depth)
	}
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDataSize, len(data), width*height*depth)
	}
	v := &Volume{
		Width:   width,
		Height:  height,
		Depth:   depth,
		data:    data,
		spacing: Isotropic(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := validateSpacing(v.spacing); err != nil {
		return nil, err
	}
	v.refreshRange()

	return v, nil
}

// Uniform builds a volume where every voxel holds value.
func Uniform(width, height, depth int, value float32, opts ...Option) (*Volume, error) {
	v, err := New(width, height, depth, opts...)
	if err != nil {
		return nil, err
	}
	for i := range v.data {
		v.data[i] = value
	}
	v.refreshRange()

	return v, nil
}

func validateSpacing(s Spacing) error {
	for _, d := range [3]float64{s.DX, s.DY, s.DZ} {
		if !(d > 0) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: (%g,%g,%g)", ErrBadSpacing, s.DX, s.DY, s.DZ)
		}
	}

	return nil
}

// Index maps (x,y,z) to the row-major offset.
func (v *Volume) Index(x, y, z int) int {
	return (z*v.Height+y)*v.Width + x
}

// Coordinate converts a row-major index back to a Coord.
func (v *Volume) Coordinate(idx int) Coord {
	plane := v.Width * v.Height
	z := idx / plane
	rem := idx % plane

	return Coord{X: rem % v.Width, Y: rem / v.Width, Z: z}
}

// InBounds reports whether c lies inside the volume.
func (v *Volume) InBounds(c Coord) bool {
	return InBounds(v, c)
}

// Len returns the number of voxels.
func (v *Volume) Len() int { return len(v.data) }

// At returns the stored value at (x,y,z).
func (v *Volume) At(x, y, z int) float32 {
	return v.data[v.Index(x, y, z)]
}

// Set stores value at (x,y,z). The cached intensity range is widened to
// include value; call Refresh to shrink it after overwriting extremes.
func (v *Volume) Set(x, y, z int, value float32) {
	v.data[v.Index(x, y, z)] = value
	if f := float64(value); f < v.min {
		v.min = f
	} else if f > v.max {
		v.max = f
	}
}

// Data exposes the backing slice. Writes through it must be followed by Refresh.
func (v *Volume) Data() []float32 { return v.data }

// Refresh recomputes the cached intensity range after bulk writes.
func (v *Volume) Refresh() { v.refreshRange() }

func (v *Volume) refreshRange() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v.data {
		f := float64(x)
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	v.min, v.max = lo, hi
}

// Sample implements Sampler.
func (v *Volume) Sample(x, y, z int) float64 {
	return float64(v.data[(z*v.Height+y)*v.Width+x])
}

// Bounds implements Sampler.
func (v *Volume) Bounds() (int, int, int) { return v.Width, v.Height, v.Depth }

// Spacing implements Sampler.
func (v *Volume) Spacing() (float64, float64, float64) {
	return v.spacing.DX, v.spacing.DY, v.spacing.DZ
}

// IntensityRange implements Sampler.
func (v *Volume) IntensityRange() (float64, float64) {
	return v.min, v.max
}

// InBounds reports whether c lies inside the bounds of s.
func InBounds(s Sampler, c Coord) bool {
	w, h, d := s.Bounds()

	return c.X >= 0 && c.X < w && c.Y >= 0 && c.Y < h && c.Z >= 0 && c.Z < d
}

// CheckBounds returns ErrOutOfBounds (with the coordinate) when c lies outside s.
func CheckBounds(s Sampler, c Coord) error {
	if !InBounds(s, c) {
		w, h, d := s.Bounds()
		return fmt.Errorf("%w: %s not in %dx%dx%d", ErrOutOfBounds, c, w, h, d)
	}

	return nil
}

// Is2D reports whether s is a single plane. Planes use the 8-connected
// neighbourhood and 2D Hessians.
func Is2D(s Sampler) bool {
	_, _, d := s.Bounds()

	return d == 1
}

// Validate rejects empty or corrupt samplers. It is the fatal-only check run
// before any search or filter work is scheduled.
func Validate(s Sampler) error {
	if s == nil {
		return ErrEmptyVolume
	}
	w, h, d := s.Bounds()
	if w < 1 || h < 1 || d < 1 {
		return fmt.Errorf("%w: %dx%dx%d", ErrEmptyVolume, w, h, d)
	}
	if err := validateSpacing(SpacingOf(s)); err != nil {
		return err
	}
	lo, hi := s.IntensityRange()
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return fmt.Errorf("%w: [%g,%g]", ErrBadRange, lo, hi)
	}

	return nil
}

package volume

import (
	"errors"
	"fmt"
)

// Sentinel errors for volume construction and validation.
var (
	// ErrEmptyVolume indicates a volume with a zero dimension or no data.
	ErrEmptyVolume = errors.New("volume: volume must have at least one voxel")
	// ErrDataSize indicates the data slice does not match the dimensions.
	ErrDataSize = errors.New("volume: data length does not match dimensions")
	// ErrBadSpacing indicates a non-positive or non-finite voxel spacing.
	ErrBadSpacing = errors.New("volume: voxel spacing must be positive and finite")
	// ErrBadRange indicates a NaN or inverted intensity range.
	ErrBadRange = errors.New("volume: intensity range is invalid")
	// ErrOutOfBounds indicates a coordinate outside the volume.
	ErrOutOfBounds = errors.New("volume: coordinate out of bounds")
)

// Coord is an integer voxel address.
type Coord struct {
	X, Y, Z int
}

// C is shorthand for Coord{X: x, Y: y, Z: z}.
func C(x, y, z int) Coord { return Coord{X: x, Y: y, Z: z} }

// Add returns c shifted by the offset o.
func (c Coord) Add(o Offset) Coord {
	return Coord{X: c.X + o.DX, Y: c.Y + o.DY, Z: c.Z + o.DZ}
}

// String formats the coordinate as "x,y,z".
func (c Coord) String() string {
	return fmt.Sprintf("%d,%d,%d", c.X, c.Y, c.Z)
}

// Sampler is read-only access to a calibrated scalar volume.
// Implementations must be safe for concurrent reads.
type Sampler interface {
	// Sample returns the scalar value of voxel (x, y, z).
	// Callers guarantee the coordinate is inside Bounds.
	Sample(x, y, z int) float64
	// Bounds returns the number of voxels along each axis.
	Bounds() (width, height, depth int)
	// Spacing returns the physical size of a voxel along each axis.
	Spacing() (dx, dy, dz float64)
	// IntensityRange returns the global minimum and maximum value.
	IntensityRange() (min, max float64)
}

// Spacing is a voxel calibration triple.
type Spacing struct {
	DX, DY, DZ float64
}

// Isotropic returns the unit spacing (1,1,1).
func Isotropic() Spacing { return Spacing{DX: 1, DY: 1, DZ: 1} }

// SpacingOf reads the spacing of a sampler.
func SpacingOf(s Sampler) Spacing {
	dx, dy, dz := s.Spacing()
	return Spacing{DX: dx, DY: dy, DZ: dz}
}

// Offset is a neighbour displacement in voxels.
type Offset struct {
	DX, DY, DZ int
}

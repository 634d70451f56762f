package hessian

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/katalvlaran/neurite/volume"
)

// Field is an immutable per-voxel ridge response with the shape and
// calibration of its source volume. It implements volume.Sampler with an
// intensity range of [0, Max].
type Field struct {
	Width, Height, Depth int
	Params               Params

	data    []float32
	spacing volume.Spacing
	max     float64
}

func newField(w, h, d int, sp volume.Spacing, p Params, data []float32) *Field {
	f := &Field{Width: w, Height: h, Depth: d, Params: p, data: data, spacing: sp}
	for _, v := range data {
		if float64(v) > f.max {
			f.max = float64(v)
		}
	}

	return f
}

// Sample implements volume.Sampler.
func (f *Field) Sample(x, y, z int) float64 {
	return float64(f.data[(z*f.Height+y)*f.Width+x])
}

// Bounds implements volume.Sampler.
func (f *Field) Bounds() (int, int, int) { return f.Width, f.Height, f.Depth }

// Spacing implements volume.Sampler.
func (f *Field) Spacing() (float64, float64, float64) {
	return f.spacing.DX, f.spacing.DY, f.spacing.DZ
}

// IntensityRange implements volume.Sampler; responses are never negative.
func (f *Field) IntensityRange() (float64, float64) { return 0, f.max }

// Max returns the largest response in the field.
func (f *Field) Max() float64 { return f.max }

// Values returns a copy of the response data in row-major order.
func (f *Field) Values() []float32 {
	return append([]float32(nil), f.data...)
}

// Codec selects the payload compression of a field snapshot.
type Codec uint8

const (
	// CodecNone stores raw little-endian float32 values.
	CodecNone Codec = iota
	// CodecZstd compresses the payload with zstd.
	CodecZstd
	// CodecLZ4 compresses the payload with an lz4 frame.
	CodecLZ4
)

// ParseCodec maps "none", "zstd" or "lz4" to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

var snapshotMagic = [4]byte{'N', 'R', 'F', 'D'}

const snapshotVersion = 1

// snapshotHeader is the fixed-size part of a snapshot, little-endian.
type snapshotHeader struct {
	Magic    [4]byte
	Version  uint8
	Codec    uint8
	Kind     uint8
	NSigmas  uint8
	W, H, D  uint32
	DX       float64
	DY       float64
	DZ       float64
	MaxValue float64
}

// Encode writes f to w as a self-describing snapshot compressed with codec.
func (f *Field) Encode(w io.Writer, codec Codec) error {
	if len(f.Params.Sigmas) > math.MaxUint8 {
		return fmt.Errorf("%w: too many sigmas", ErrBadSnapshot)
	}
	hdr := snapshotHeader{
		Magic:    snapshotMagic,
		Version:  snapshotVersion,
		Codec:    uint8(codec),
		Kind:     uint8(f.Params.Kind),
		NSigmas:  uint8(len(f.Params.Sigmas)),
		W:        uint32(f.Width),
		H:        uint32(f.Height),
		D:        uint32(f.Depth),
		DX:       f.spacing.DX,
		DY:       f.spacing.DY,
		DZ:       f.spacing.DZ,
		MaxValue: f.max,
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("hessian: write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, f.Params.Sigmas); err != nil {
		return fmt.Errorf("hessian: write sigmas: %w", err)
	}

	var (
		pw    io.Writer
		finish func() error
	)
	switch codec {
	case CodecNone:
		bw := bufio.NewWriter(w)
		pw, finish = bw, bw.Flush
	case CodecZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("hessian: create zstd encoder: %w", err)
		}
		pw, finish = zw, zw.Close
	case CodecLZ4:
		lw := lz4.NewWriter(w)
		pw, finish = lw, lw.Close
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
	if err := binary.Write(pw, binary.LittleEndian, f.data); err != nil {
		_ = finish()
		return fmt.Errorf("hessian: write payload: %w", err)
	}

	return finish()
}

// Decode reads a snapshot written by Field.Encode.
func Decode(r io.Reader) (*Field, error) {
	var hdr snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadSnapshot, err)
	}
	if hdr.Magic != snapshotMagic || hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: bad magic or version", ErrBadSnapshot)
	}
	p := Params{Kind: Kind(hdr.Kind), Sigmas: make([]float64, hdr.NSigmas)}
	if err := binary.Read(r, binary.LittleEndian, p.Sigmas); err != nil {
		return nil, fmt.Errorf("%w: sigmas: %v", ErrBadSnapshot, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	n := uint64(hdr.W) * uint64(hdr.H) * uint64(hdr.D)
	if n == 0 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: shape %dx%dx%d", ErrBadSnapshot, hdr.W, hdr.H, hdr.D)
	}

	var pr io.Reader
	switch Codec(hdr.Codec) {
	case CodecNone:
		pr = bufio.NewReader(r)
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("hessian: create zstd decoder: %w", err)
		}
		defer zr.Close()
		pr = zr
	case CodecLZ4:
		pr = lz4.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, hdr.Codec)
	}
	data, err := readPayload(pr, int(n))
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrBadSnapshot, err)
	}

	sp := volume.Spacing{DX: hdr.DX, DY: hdr.DY, DZ: hdr.DZ}
	f := newField(int(hdr.W), int(hdr.H), int(hdr.D), sp, p, data)
	if err := volume.Validate(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	return f, nil
}

// payloadChunk is the number of values decoded per read. The header's shape
// is not trusted for allocation: data grows only as payload actually arrives.
const payloadChunk = 1 << 16

func readPayload(r io.Reader, n int) ([]float32, error) {
	data := make([]float32, 0, min(n, payloadChunk))
	buf := make([]byte, 4*min(n, payloadChunk))
	for len(data) < n {
		k := min(n-len(data), payloadChunk)
		b := buf[:4*k]
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		for i := 0; i < k; i++ {
			data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
	}

	return data, nil
}

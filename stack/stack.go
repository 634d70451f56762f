// Package stack loads a z-stack of 2D image slices into a volume.Volume.
// TIFF, PNG and JPEG slices are supported; 16-bit grayscale is preserved,
// colour is reduced to luminance.
package stack

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/tiff"

	"github.com/katalvlaran/neurite/volume"
)

// Sentinel errors returned by Load.
var (
	// ErrNoSlices indicates an empty slice list.
	ErrNoSlices = errors.New("stack: no slices given")
	// ErrSliceSize indicates slices of different dimensions.
	ErrSliceSize = errors.New("stack: slice dimensions differ")
	// ErrUnsupported indicates a file extension that cannot be decoded.
	ErrUnsupported = errors.New("stack: unsupported image format")
)

// SupportedFormats returns the list of supported slice extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// Expand resolves patterns into a de-duplicated list of supported slice
// files. Patterns are kept in the order given; the matches of one glob are
// sorted naturally, so s2.png precedes s10.png. Plain paths are kept as
// given.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("stack: bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		sort.Slice(matches, func(i, j int) bool { return naturalLess(matches[i], matches[j]) })
		for _, m := range matches {
			if !IsSupportedFormat(m) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupported, m)
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	return out, nil
}

// naturalLess orders digit runs by value and everything else bytewise:
// "z2" < "z10", "a9b" < "a10a". Ties fall back to plain comparison.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			ei, ej := digitRun(a, i), digitRun(b, j)
			na := strings.TrimLeft(a[i:ei], "0")
			nb := strings.TrimLeft(b[j:ej], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			i, j = ei, ej
			continue
		}
		if a[i] != b[j] {
			return a[i] < b[j]
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}

	return a < b
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitRun(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}

	return i
}

// Load decodes paths in order as slices z = 0..n-1. opts are passed to
// volume.New (e.g. volume.WithSpacing).
func Load(paths []string, opts ...volume.Option) (*volume.Volume, error) {
	if len(paths) == 0 {
		return nil, ErrNoSlices
	}

	var v *volume.Volume
	for z, path := range paths {
		img, err := decode(path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if v == nil {
			if v, err = volume.New(b.Dx(), b.Dy(), len(paths), opts...); err != nil {
				return nil, err
			}
		} else if b.Dx() != v.Width || b.Dy() != v.Height {
			return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrSliceSize, path, b.Dx(), b.Dy(), v.Width, v.Height)
		}
		copySlice(v, z, img)
	}
	v.Refresh()

	return v, nil
}

func decode(path string) (image.Image, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stack: failed to open slice: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("stack: failed to decode %s: %w", path, err)
	}

	return img, nil
}

// copySlice writes img into plane z of v.
func copySlice(v *volume.Volume, z int, img image.Image) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v.Set(x, y, z, intensity(img, b.Min.X+x, b.Min.Y+y))
		}
	}
}

func intensity(img image.Image, x, y int) float32 {
	switch im := img.(type) {
	case *image.Gray16:
		return float32(im.Gray16At(x, y).Y)
	case *image.Gray:
		return float32(im.GrayAt(x, y).Y)
	default:
		return float32(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
	}
}

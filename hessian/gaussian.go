package hessian

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// kernels holds the sampled zeroth, first and second Gaussian derivatives
// for one axis, all centred at index radius.
type kernels struct {
	radius int
	d      [3][]float64
}

// gaussianKernels samples G, G' and G'' at integer offsets for the given
// sigma in voxel units. G is normalised to unit sum; the derivative kernels
// are corrected so that G' has zero sum and unit first moment, and G'' has
// zero sum and a second moment of 2, which keeps derivatives of polynomials
// exact despite truncation.
func gaussianKernels(sigma float64) kernels {
	r := int(math.Ceil(3*sigma)) + 1
	n := 2*r + 1
	k := kernels{radius: r}
	for i := range k.d {
		k.d[i] = make([]float64, n)
	}
	s2 := sigma * sigma
	for i := 0; i < n; i++ {
		x := float64(i - r)
		g := math.Exp(-x * x / (2 * s2))
		k.d[0][i] = g
		k.d[1][i] = -x / s2 * g
		k.d[2][i] = (x*x - s2) / (s2 * s2) * g
	}
	floats.Scale(1/floats.Sum(k.d[0]), k.d[0])

	var m1 float64
	for i, v := range k.d[1] {
		m1 += float64(i-r) * v
	}
	// Convolution flips the kernel, so a unit slope must come out as +1.
	floats.Scale(-1/m1, k.d[1])

	mean := floats.Sum(k.d[2]) / float64(n)
	floats.AddConst(-mean, k.d[2])
	var m2 float64
	for i, v := range k.d[2] {
		x := float64(i - r)
		m2 += x * x * v
	}
	floats.Scale(2/m2, k.d[2])

	return k
}

// grid describes the flat buffer layout shared by all passes.
type grid struct {
	w, h, d int
}

func (g grid) len() int { return g.w * g.h * g.d }

// axis lengths and strides in the flat row-major buffer.
func (g grid) axis(a int) (n, stride, lines int) {
	switch a {
	case 0:
		return g.w, 1, g.h * g.d
	case 1:
		return g.h, g.w, g.w * g.d
	default:
		return g.d, g.w * g.h, g.w * g.h
	}
}

// lineBase returns the flat index of the first element of line l along axis a.
func (g grid) lineBase(a, l int) int {
	switch a {
	case 0:
		return l * g.w
	case 1:
		x, z := l%g.w, l/g.w
		return z*g.w*g.h + x
	default:
		return l
	}
}

// convolve applies kernel along axis a from src into dst with clamped
// borders. Lines are split across at most workers goroutines; ctx is checked
// once per chunk.
func convolve(ctx context.Context, g grid, a int, kernel []float64, src, dst []float64, workers int) error {
	n, stride, lines := g.axis(a)
	r := len(kernel) / 2
	if n == 1 {
		// Degenerate axis: clamped borders collapse the kernel onto one sample.
		sum := floats.Sum(kernel)
		for i := range src {
			dst[i] = sum * src[i]
		}
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	chunk := (lines + workers - 1) / workers
	for start := 0; start < lines; start += chunk {
		lo, hi := start, min(start+chunk, lines)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for l := lo; l < hi; l++ {
				base := g.lineBase(a, l)
				for i := 0; i < n; i++ {
					var acc float64
					for k, kv := range kernel {
						j := i + r - k
						if j < 0 {
							j = 0
						} else if j >= n {
							j = n - 1
						}
						acc += kv * src[base+j*stride]
					}
					dst[base+i*stride] = acc
				}
			}
			return nil
		})
	}

	return eg.Wait()
}

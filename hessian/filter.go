package hessian

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/neurite/volume"
)

// Frangi sensitivity constants.
const (
	frangiAlpha = 0.5
	frangiBeta  = 0.5
)

// Compute runs the ridge filter described by p over s and returns a new Field.
//
// Steps per sigma:
//  1. Convert sigma to voxel units per axis (σ/dx, σ/dy, σ/dz).
//  2. Separable Gaussian-derivative passes produce Hxx, Hyy, Hzz, Hxy, Hxz, Hyz,
//     scaled to calibrated units and normalised by σ².
//  3. Eigenvalues per voxel (mat.EigenSym), sorted by magnitude, are mapped to
//     the Tubeness or Frangi response; the maximum across scales is kept.
//
// Progress is reported through Options.Progress; cancellation of ctx aborts
// between chunks and reports -1.
func Compute(ctx context.Context, s volume.Sampler, p Params, opts ...Option) (*Field, error) {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	report := func(v float64) {
		if cfg.Progress != nil {
			cfg.Progress(v)
		}
	}
	if err := p.Validate(); err != nil {
		report(-1)
		return nil, err
	}
	if err := volume.Validate(s); err != nil {
		report(-1)
		return nil, err
	}

	f, err := compute(ctx, s, p.clone(), cfg, report)
	if err != nil {
		report(-1)
		return nil, err
	}
	report(1)

	return f, nil
}

func compute(ctx context.Context, s volume.Sampler, p Params, cfg Options, report func(float64)) (*Field, error) {
	w, h, d := s.Bounds()
	g := grid{w: w, h: h, d: d}
	threeD := !volume.Is2D(s)
	sp := volume.SpacingOf(s)

	src := make([]float64, g.len())
	if v, ok := s.(*volume.Volume); ok {
		for i, x := range v.Data() {
			src[i] = float64(x)
		}
	} else {
		i := 0
		for z := 0; z < d; z++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					src[i] = s.Sample(x, y, z)
					i++
				}
			}
		}
	}

	// Work units: derivative passes + one eigen stage per sigma.
	passes := 7.0
	if threeD {
		passes = 16.0
	}
	total := passes * float64(len(p.Sigmas))
	done := 0.0
	step := func() {
		done++
		report(done / total * 0.999)
	}

	out := make([]float32, g.len())
	for _, sigma := range p.Sigmas {
		hs, err := hessianComponents(ctx, g, src, sigma, sp, threeD, cfg.Workers, step)
		if err != nil {
			return nil, err
		}
		if err := respond(ctx, g, hs, p.Kind, threeD, cfg.Workers, out); err != nil {
			return nil, err
		}
		step()
	}

	return newField(w, h, d, sp, p, out), nil
}

// hessianComponents returns the six (or three in 2D) scale-normalised second
// derivatives in the order xx, yy, zz, xy, xz, yz (2D: xx, yy, xy).
func hessianComponents(ctx context.Context, g grid, src []float64, sigma float64, sp volume.Spacing,
	threeD bool, workers int, step func()) ([][]float64, error) {
	kx := gaussianKernels(sigma / sp.DX)
	ky := gaussianKernels(sigma / sp.DY)
	n := g.len()
	pass := func(a int, k []float64, in []float64) ([]float64, error) {
		dst := make([]float64, n)
		if err := convolve(ctx, g, a, k, in, dst, workers); err != nil {
			return nil, err
		}
		step()
		return dst, nil
	}
	s2 := sigma * sigma

	// [y order][x order] on top of a z-prepared buffer.
	type derivative struct {
		zo, yo, xo int
		scale      float64
	}
	var derivs []derivative
	zbuf := map[int][]float64{0: src}
	if threeD {
		kz := gaussianKernels(sigma / sp.DZ)
		for _, zo := range []int{0, 1, 2} {
			b, err := pass(2, kz.d[zo], src)
			if err != nil {
				return nil, err
			}
			zbuf[zo] = b
		}
		derivs = []derivative{
			{0, 0, 2, s2 / (sp.DX * sp.DX)},
			{0, 2, 0, s2 / (sp.DY * sp.DY)},
			{2, 0, 0, s2 / (sp.DZ * sp.DZ)},
			{0, 1, 1, s2 / (sp.DX * sp.DY)},
			{1, 0, 1, s2 / (sp.DX * sp.DZ)},
			{1, 1, 0, s2 / (sp.DY * sp.DZ)},
		}
	} else {
		derivs = []derivative{
			{0, 0, 2, s2 / (sp.DX * sp.DX)},
			{0, 2, 0, s2 / (sp.DY * sp.DY)},
			{0, 1, 1, s2 / (sp.DX * sp.DY)},
		}
	}

	ycache := map[[2]int][]float64{}
	out := make([][]float64, 0, len(derivs))
	for _, sc := range derivs {
		yk := [2]int{sc.zo, sc.yo}
		yb, ok := ycache[yk]
		if !ok {
			var err error
			if yb, err = pass(1, ky.d[sc.yo], zbuf[sc.zo]); err != nil {
				return nil, err
			}
			ycache[yk] = yb
		}
		xb, err := pass(0, kx.d[sc.xo], yb)
		if err != nil {
			return nil, err
		}
		for i := range xb {
			xb[i] *= sc.scale
		}
		out = append(out, xb)
	}

	return out, nil
}

// respond maps each voxel's Hessian to a ridge response and folds it into out
// with a running maximum.
func respond(ctx context.Context, g grid, hs [][]float64, kind Kind, threeD bool, workers int, out []float32) error {
	n := g.len()
	c := 0.0
	if kind == Frangi {
		var maxNorm float64
		for i := 0; i < n; i++ {
			maxNorm = math.Max(maxNorm, frobenius(hs, i, threeD))
		}
		c = maxNorm / 2
	}

	dim := 2
	if threeD {
		dim = 3
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sym := mat.NewSymDense(dim, nil)
			var es mat.EigenSym
			lambda := make([]float64, dim)
			for i := lo; i < hi; i++ {
				if threeD {
					sym.SetSym(0, 0, hs[0][i])
					sym.SetSym(1, 1, hs[1][i])
					sym.SetSym(2, 2, hs[2][i])
					sym.SetSym(0, 1, hs[3][i])
					sym.SetSym(0, 2, hs[4][i])
					sym.SetSym(1, 2, hs[5][i])
				} else {
					sym.SetSym(0, 0, hs[0][i])
					sym.SetSym(1, 1, hs[1][i])
					sym.SetSym(0, 1, hs[2][i])
				}
				if !es.Factorize(sym, false) {
					continue
				}
				es.Values(lambda)
				sortByMagnitude(lambda)

				var r float64
				switch {
				case kind == Tubeness && threeD:
					r = tubeness3D(lambda)
				case kind == Tubeness:
					r = tubeness2D(lambda)
				case threeD:
					r = frangi3D(lambda, c)
				default:
					r = frangi2D(lambda, c)
				}
				if math.IsNaN(r) || math.IsInf(r, 0) {
					r = 0
				}
				if f := float32(r); f > out[i] {
					out[i] = f
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("hessian: eigen analysis: %w", err)
	}

	return nil
}

// sortByMagnitude orders two or three eigenvalues by ascending |λ| in place.
func sortByMagnitude(l []float64) {
	swap := func(i, j int) {
		if math.Abs(l[j]) < math.Abs(l[i]) {
			l[i], l[j] = l[j], l[i]
		}
	}
	swap(0, 1)
	if len(l) == 3 {
		swap(1, 2)
		swap(0, 1)
	}
}

func frobenius(hs [][]float64, i int, threeD bool) float64 {
	if threeD {
		return math.Sqrt(hs[0][i]*hs[0][i] + hs[1][i]*hs[1][i] + hs[2][i]*hs[2][i] +
			2*(hs[3][i]*hs[3][i]+hs[4][i]*hs[4][i]+hs[5][i]*hs[5][i]))
	}

	return math.Sqrt(hs[0][i]*hs[0][i] + hs[1][i]*hs[1][i] + 2*hs[2][i]*hs[2][i])
}

// λ sorted by |λ| ascending in all response functions below.

func tubeness3D(l []float64) float64 {
	if l[1] < 0 && l[2] < 0 {
		return math.Sqrt(l[1] * l[2])
	}
	return 0
}

func tubeness2D(l []float64) float64 {
	if l[1] < 0 {
		return -l[1]
	}
	return 0
}

func frangi3D(l []float64, c float64) float64 {
	if l[1] >= 0 || l[2] >= 0 || c == 0 {
		return 0
	}
	a1, a2, a3 := math.Abs(l[0]), math.Abs(l[1]), math.Abs(l[2])
	ra := a2 / a3
	rb := a1 / math.Sqrt(a2*a3)
	s := math.Sqrt(a1*a1 + a2*a2 + a3*a3)

	return (1 - math.Exp(-ra*ra/(2*frangiAlpha*frangiAlpha))) *
		math.Exp(-rb*rb/(2*frangiBeta*frangiBeta)) *
		(1 - math.Exp(-s*s/(2*c*c)))
}

func frangi2D(l []float64, c float64) float64 {
	if l[1] >= 0 || c == 0 {
		return 0
	}
	a1, a2 := math.Abs(l[0]), math.Abs(l[1])
	rb := a1 / a2
	s := math.Sqrt(a1*a1 + a2*a2)

	return math.Exp(-rb*rb/(2*frangiBeta*frangiBeta)) * (1 - math.Exp(-s*s/(2*c*c)))
}

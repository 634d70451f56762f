package tracer_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/fill"
	"github.com/katalvlaran/neurite/hessian"
	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/tracer"
	"github.com/katalvlaran/neurite/volume"
)

func request(a, b volume.Coord) tracer.Request {
	return tracer.Request{
		Start:     a,
		Goal:      b,
		Mode:      search.Bidirectional,
		Cost:      cost.Reciprocal,
		Heuristic: cost.Euclidean,
	}
}

func newTracer(t *testing.T, primary volume.Sampler, opts ...tracer.Option) *tracer.Tracer {
	t.Helper()
	tr := tracer.New(append([]tracer.Option{tracer.WithWorkers(2), tracer.WithFilterWorkers(2)}, opts...)...)
	t.Cleanup(tr.Close)
	require.NoError(t, tr.SetImages(primary, nil, false))

	return tr
}

// recorder is a Sink that checks ordering.
type recorder struct {
	mu       sync.Mutex
	progress int
	finished []search.Result
	late     bool
}

func (r *recorder) OnProgress(opened, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.finished) > 0 {
		r.late = true
	}
	r.progress++
}

func (r *recorder) OnFinished(res search.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}

func TestSubmit_Succeeds(t *testing.T) {
	v, err := volume.Uniform(16, 16, 16, 20)
	require.NoError(t, err)
	tr := newTracer(t, v, tracer.WithProgressInterval(0))

	rec := &recorder{}
	h, err := tr.Submit(context.Background(), request(volume.C(0, 0, 0), volume.C(15, 15, 15)), rec)
	require.NoError(t, err)
	res := h.Wait()
	require.Equal(t, search.Succeeded, res.Status, "err=%v", res.Err)
	assert.Equal(t, 16, res.Path.Len())

	<-h.Done()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.finished, 1)
	assert.Equal(t, res.Cost, rec.finished[0].Cost)
	assert.GreaterOrEqual(t, rec.progress, 1)
	assert.False(t, rec.late, "progress after the terminal result")
	assert.Zero(t, tr.Active())
	assert.False(t, tr.Busy())
}

func TestSubmit_ValidationErrors(t *testing.T) {
	v, err := volume.Uniform(8, 8, 8, 1)
	require.NoError(t, err)
	tr := newTracer(t, v)
	a, b := volume.C(0, 0, 0), volume.C(7, 7, 7)

	mutate := func(fn func(*tracer.Request)) tracer.Request {
		r := request(a, b)
		fn(&r)
		return r
	}
	cases := []struct {
		name string
		req  tracer.Request
		err  error
	}{
		{"OutOfBounds", mutate(func(r *tracer.Request) { r.Goal = volume.C(8, 0, 0) }), volume.ErrOutOfBounds},
		{"SameEndpoints", mutate(func(r *tracer.Request) { r.Goal = a }), search.ErrSameEndpoints},
		{"UnknownMode", mutate(func(r *tracer.Request) { r.Mode = 9 }), search.ErrUnknownMode},
		{"UnknownCost", mutate(func(r *tracer.Request) { r.Cost = 0 }), cost.ErrUnknownKind},
		{"UnknownHeuristic", mutate(func(r *tracer.Request) { r.Heuristic = 7 }), cost.ErrUnknownHeuristic},
		{"BadTuning", mutate(func(r *tracer.Request) { r.CostParams.Epsilon = -1 }), cost.ErrBadParam},
		{"BadSigma", mutate(func(r *tracer.Request) {
			r.Cost = cost.Curvature
			r.Filter = hessian.Params{Kind: hessian.Frangi, Sigmas: []float64{0}}
		}), hessian.ErrBadSigma},
		{"NoSecondary", mutate(func(r *tracer.Request) { r.Source = hessian.Secondary }), tracer.ErrNoImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := tr.Submit(context.Background(), tc.req, nil)
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, h)
			assert.Zero(t, tr.Active())
		})
	}

	empty := tracer.New()
	defer empty.Close()
	_, err = empty.Submit(context.Background(), request(a, b), nil)
	assert.ErrorIs(t, err, tracer.ErrNoImage)
}

// gatedSampler blocks every Sample until the gate is closed.
type gatedSampler struct {
	*volume.Volume
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newGated(t *testing.T, n int) *gatedSampler {
	t.Helper()
	v, err := volume.Uniform(n, n, n, 5)
	require.NoError(t, err)

	return &gatedSampler{Volume: v, gate: make(chan struct{}), entered: make(chan struct{})}
}

func (g *gatedSampler) Sample(x, y, z int) float64 {
	g.once.Do(func() { close(g.entered) })
	<-g.gate

	return g.Volume.Sample(x, y, z)
}

func TestSetImages_RefusedWhileBusy(t *testing.T) {
	g := newGated(t, 12)
	tr := newTracer(t, g)
	h, err := tr.Submit(context.Background(), request(volume.C(0, 0, 0), volume.C(11, 11, 11)), nil)
	require.NoError(t, err)
	<-g.entered

	other, err := volume.Uniform(12, 12, 12, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.SetImages(other, nil, false), tracer.ErrBusy)
	assert.Equal(t, 1, tr.Active())

	close(g.gate)
	res := h.Wait()
	assert.Equal(t, search.Succeeded, res.Status)
	assert.NoError(t, tr.SetImages(other, nil, false))
}

func TestSetImages_ForceCancels(t *testing.T) {
	g := newGated(t, 30)
	tr := newTracer(t, g)
	h, err := tr.Submit(context.Background(), request(volume.C(0, 0, 0), volume.C(29, 29, 29)), nil)
	require.NoError(t, err)
	<-g.entered

	other, err := volume.Uniform(30, 30, 30, 1)
	require.NoError(t, err)
	require.NoError(t, tr.SetImages(other, nil, true))
	close(g.gate)

	res := h.Wait()
	assert.Equal(t, search.Cancelled, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, tr.Active())
}

func TestSetImages_Validation(t *testing.T) {
	tr := tracer.New()
	defer tr.Close()
	a, err := volume.Uniform(4, 4, 4, 1)
	require.NoError(t, err)
	b, err := volume.Uniform(4, 4, 5, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, tr.SetImages(nil, nil, false), tracer.ErrNoImage)
	assert.Error(t, tr.SetImages(a, b, false))
	assert.NoError(t, tr.SetImages(a, a, false))
}

func TestHandle_Cancel(t *testing.T) {
	g := newGated(t, 30)
	tr := newTracer(t, g)
	h, err := tr.Submit(context.Background(), request(volume.C(0, 0, 0), volume.C(29, 29, 29)), nil)
	require.NoError(t, err)
	<-g.entered
	h.Cancel()
	close(g.gate)

	assert.Equal(t, search.Cancelled, h.Wait().Status)
	h.Cancel()
}

// tube returns a volume with a bright Gaussian tube along x through (c, c).
func tube(t *testing.T, w, n int) *volume.Volume {
	t.Helper()
	v, err := volume.New(w, n, n)
	require.NoError(t, err)
	c := float64(n / 2)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < w; x++ {
				dy, dz := float64(y)-c, float64(z)-c
				v.Set(x, y, z, float32(10+100*math.Exp(-(dy*dy+dz*dz)/4.5)))
			}
		}
	}
	v.Refresh()

	return v
}

func TestSubmit_CurvatureUsesCache(t *testing.T) {
	v := tube(t, 24, 16)
	tr := newTracer(t, v)
	req := request(volume.C(2, 8, 8), volume.C(21, 8, 8))
	req.Cost = cost.Curvature
	req.Filter = hessian.Params{Kind: hessian.Tubeness, Sigmas: []float64{1.5}}

	for i := 0; i < 2; i++ {
		h, err := tr.Submit(context.Background(), req, nil)
		require.NoError(t, err)
		res := h.Wait()
		require.Equal(t, search.Succeeded, res.Status, "err=%v", res.Err)
		for _, c := range res.Path.Coords {
			assert.LessOrEqual(t, math.Abs(float64(c.Y-8)), 1.0, "%s", c)
			assert.LessOrEqual(t, math.Abs(float64(c.Z-8)), 1.0, "%s", c)
		}
	}
	assert.EqualValues(t, 1, tr.Cache().Computations())

	f, err := tr.Filter(context.Background(), hessian.Primary, req.Filter, nil)
	require.NoError(t, err)
	assert.Greater(t, f.Max(), 0.0)
	assert.EqualValues(t, 1, tr.Cache().Computations())
}

// TestSubmit_TubenessBridge joins two dark-separated line segments through
// a single bright voxel; the path must cross x=10 exactly there.
func TestSubmit_TubenessBridge(t *testing.T) {
	v, err := volume.New(21, 21, 21)
	require.NoError(t, err)
	for x := 2; x <= 9; x++ {
		v.Set(x, 10, 10, 100)
		v.Set(x+9, 10, 10, 100)
	}
	v.Set(10, 10, 10, 100)
	v.Refresh()
	tr := newTracer(t, v)
	bridge := volume.C(10, 10, 10)

	for _, mode := range []search.Mode{search.Unidirectional, search.Bidirectional} {
		t.Run(mode.String(), func(t *testing.T) {
			req := request(volume.C(2, 10, 10), volume.C(18, 10, 10))
			req.Mode = mode
			req.Cost = cost.Curvature
			req.Filter = hessian.Params{Kind: hessian.Tubeness, Sigmas: []float64{1}}

			h, err := tr.Submit(context.Background(), req, nil)
			require.NoError(t, err)
			res := h.Wait()
			require.Equal(t, search.Succeeded, res.Status, "err=%v", res.Err)
			assert.Contains(t, res.Path.Coords, bridge)
			for _, c := range res.Path.Coords {
				if c.X == 10 {
					assert.Equal(t, bridge, c)
				}
			}
		})
	}
	assert.EqualValues(t, 1, tr.Cache().Computations())
}

// brokenSampler reports a corrupt intensity range once broken is set.
type brokenSampler struct {
	*volume.Volume
	broken atomic.Bool
}

func (b *brokenSampler) IntensityRange() (float64, float64) {
	if b.broken.Load() {
		return math.NaN(), math.NaN()
	}

	return b.Volume.IntensityRange()
}

func TestSubmit_FilterFailureFailsSearch(t *testing.T) {
	v, err := volume.Uniform(10, 10, 10, 3)
	require.NoError(t, err)
	bs := &brokenSampler{Volume: v}
	tr := newTracer(t, bs)
	bs.broken.Store(true)

	req := request(volume.C(0, 0, 0), volume.C(9, 9, 9))
	req.Cost = cost.Curvature
	req.Filter = hessian.Params{Kind: hessian.Frangi, Sigmas: []float64{1}}
	h, err := tr.Submit(context.Background(), req, nil)
	require.NoError(t, err)

	res := h.Wait()
	assert.Equal(t, search.Failed, res.Status)
	assert.ErrorIs(t, res.Err, tracer.ErrFilterFailed)
	assert.ErrorIs(t, res.Err, volume.ErrBadRange)
	assert.Nil(t, res.Path)
}

func TestAutoTrace(t *testing.T) {
	v, err := volume.Uniform(20, 20, 1, 9)
	require.NoError(t, err)
	tr := newTracer(t, v)
	points := []volume.Coord{volume.C(0, 0, 0), volume.C(10, 0, 0), volume.C(10, 10, 0), volume.C(19, 19, 0)}

	paths, err := tr.AutoTrace(context.Background(), points, request(volume.Coord{}, volume.Coord{}))
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for i, p := range paths {
		assert.Equal(t, points[i], p.Coords[0])
		assert.Equal(t, points[i+1], p.Coords[p.Len()-1])
	}

	joined := tracer.Join(paths)
	assert.Equal(t, paths[0].Len()+paths[1].Len()+paths[2].Len()-2, joined.Len())
	var total float64
	for _, p := range paths {
		total += p.Cumulative[p.Len()-1]
	}
	assert.InDelta(t, total, joined.Cumulative[joined.Len()-1], 1e-9)

	_, err = tr.AutoTrace(context.Background(), points[:1], request(volume.Coord{}, volume.Coord{}))
	assert.ErrorIs(t, err, tracer.ErrTooFewPoints)
	_, err = tr.AutoTrace(context.Background(), []volume.Coord{points[0], points[0]}, request(volume.Coord{}, volume.Coord{}))
	assert.ErrorIs(t, err, search.ErrSameEndpoints)
	assert.Zero(t, tr.Active())
}

// countingSampler counts voxel reads.
type countingSampler struct {
	*volume.Volume
	reads atomic.Int64
}

func (c *countingSampler) Sample(x, y, z int) float64 {
	c.reads.Add(1)

	return c.Volume.Sample(x, y, z)
}

func TestProbability_StatisticsComputedOncePerImage(t *testing.T) {
	const n = 20
	v, err := volume.New(n, n, n)
	require.NoError(t, err)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v.Set(x, y, z, float32(x+2*y+3*z))
			}
		}
	}
	v.Refresh()
	voxels := int64(n * n * n)
	cs := &countingSampler{Volume: v}
	tr := newTracer(t, cs)

	req := request(volume.Coord{}, volume.Coord{})
	req.Cost = cost.Probability
	points := []volume.Coord{volume.C(5, 5, 5), volume.C(6, 5, 5), volume.C(6, 6, 5), volume.C(6, 6, 6), volume.C(7, 6, 6)}
	_, err = tr.AutoTrace(context.Background(), points, req)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		one := req
		one.Start, one.Goal = volume.C(1, 1, 1), volume.C(2, 2, 2)
		h, err := tr.Submit(context.Background(), one, nil)
		require.NoError(t, err)
		require.Equal(t, search.Succeeded, h.Wait().Status)
	}
	first := cs.reads.Load()
	assert.GreaterOrEqual(t, first, voxels)
	assert.Less(t, first, 2*voxels, "statistics rescanned per search")

	// A reload starts over with fresh statistics.
	require.NoError(t, tr.SetImages(cs, nil, false))
	one := req
	one.Start, one.Goal = volume.C(1, 1, 1), volume.C(2, 2, 2)
	h, err := tr.Submit(context.Background(), one, nil)
	require.NoError(t, err)
	require.Equal(t, search.Succeeded, h.Wait().Status)
	assert.GreaterOrEqual(t, cs.reads.Load()-first, voxels)
}

func TestAutoTrace_Cancelled(t *testing.T) {
	g := newGated(t, 20)
	tr := newTracer(t, g)
	ctx, cancel := context.WithCancel(context.Background())
	points := []volume.Coord{volume.C(0, 0, 0), volume.C(19, 19, 19), volume.C(0, 19, 0)}

	errc := make(chan error, 1)
	go func() {
		_, err := tr.AutoTrace(ctx, points, request(volume.Coord{}, volume.Coord{}))
		errc <- err
	}()
	<-g.entered
	cancel()
	close(g.gate)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("auto-trace did not stop")
	}
}

func TestFill(t *testing.T) {
	v, err := volume.Uniform(9, 9, 9, 40)
	require.NoError(t, err)
	tr := newTracer(t, v)
	req := request(volume.Coord{}, volume.Coord{})

	fn, err := cost.ForSampler(cost.Reciprocal, v, cost.Params{})
	require.NoError(t, err)
	res, err := tr.Fill(context.Background(), []volume.Coord{volume.C(4, 4, 4)}, req,
		fill.WithMaxDistance(fn.Cost(40)))
	require.NoError(t, err)
	assert.Equal(t, 7, res.Len())
	assert.Zero(t, tr.Active())

	req.Cost = 0
	_, err = tr.Fill(context.Background(), []volume.Coord{volume.C(4, 4, 4)}, req)
	assert.ErrorIs(t, err, cost.ErrUnknownKind)
}

func TestClose(t *testing.T) {
	g := newGated(t, 20)
	tr := tracer.New(tracer.WithWorkers(1))
	require.NoError(t, tr.SetImages(g, nil, false))
	h, err := tr.Submit(context.Background(), request(volume.C(0, 0, 0), volume.C(19, 19, 19)), nil)
	require.NoError(t, err)
	<-g.entered

	closed := make(chan struct{})
	go func() {
		tr.Close()
		close(closed)
	}()
	// Cancellation and the closed flag are set together, so once the
	// tracer reports closed the gate can open.
	require.Eventually(t, func() bool {
		return errors.Is(tr.SetImages(g, nil, false), tracer.ErrClosed)
	}, 5*time.Second, time.Millisecond)
	close(g.gate)
	<-closed

	assert.Equal(t, search.Cancelled, h.Wait().Status)
	_, err = tr.Submit(context.Background(), request(volume.C(0, 0, 0), volume.C(1, 1, 1)), nil)
	assert.ErrorIs(t, err, tracer.ErrClosed)
	assert.ErrorIs(t, tr.SetImages(g, nil, false), tracer.ErrClosed)
}

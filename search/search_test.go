package search_test

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/volume"
)

var modes = []search.Mode{search.Unidirectional, search.Bidirectional}

// model builds a Reciprocal cost model and its Euclidean heuristic.
func model(t testing.TB, s volume.Sampler) (*cost.Model, cost.Heuristic) {
	t.Helper()
	fn, err := cost.ForSampler(cost.Reciprocal, s, cost.Params{})
	require.NoError(t, err)
	m, err := cost.NewModel(s, fn)
	require.NoError(t, err)
	h, err := cost.NewHeuristic(cost.Euclidean, volume.SpacingOf(s), fn)
	require.NoError(t, err)

	return m, h
}

func run(t testing.TB, mode search.Mode, m *cost.Model, h cost.Heuristic, a, b volume.Coord, opts ...search.Option) search.Result {
	t.Helper()
	s, err := search.New(mode, m, h, a, b, opts...)
	require.NoError(t, err)
	require.Equal(t, search.Ready, s.Status())
	res := s.Run(context.Background())
	require.Equal(t, res.Status, s.Status())

	return res
}

// assertValidPath checks endpoints, adjacency and that Cost matches the
// accumulated edge cost.
func assertValidPath(t *testing.T, m *cost.Model, res search.Result, a, b volume.Coord) {
	t.Helper()
	require.Equal(t, search.Succeeded, res.Status, "err=%v", res.Err)
	require.NotNil(t, res.Path)
	p := res.Path
	require.Equal(t, a, p.Coords[0])
	require.Equal(t, b, p.Coords[p.Len()-1])
	require.Len(t, p.Points, p.Len())
	require.Len(t, p.Cumulative, p.Len())

	sp := volume.SpacingOf(m.Sampler)
	var total float64
	for i := 1; i < p.Len(); i++ {
		prev, cur := p.Coords[i-1], p.Coords[i]
		assert.LessOrEqual(t, absInt(cur.X-prev.X), 1)
		assert.LessOrEqual(t, absInt(cur.Y-prev.Y), 1)
		assert.LessOrEqual(t, absInt(cur.Z-prev.Z), 1)
		assert.NotEqual(t, prev, cur)
		total += m.At(cur) * volume.Distance(sp, prev, cur)
		assert.GreaterOrEqual(t, p.Cumulative[i], p.Cumulative[i-1])
	}
	assert.InDelta(t, total, res.Cost, 1e-9*math.Max(1, total))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}

	return x
}

// TestUniformDiagonal traces corner to corner through a uniform cube: the
// only minimum-cost path is the 19-step main diagonal.
func TestUniformDiagonal(t *testing.T) {
	v, err := volume.Uniform(20, 20, 20, 100)
	require.NoError(t, err)
	m, h := model(t, v)
	a, b := volume.C(0, 0, 0), volume.C(19, 19, 19)
	step := m.Fn.Cost(100) * math.Sqrt(3)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			res := run(t, mode, m, h, a, b)
			assertValidPath(t, m, res, a, b)
			require.Equal(t, 20, res.Path.Len())
			for i, c := range res.Path.Coords {
				assert.Equal(t, volume.C(i, i, i), c)
			}
			assert.InDelta(t, 19*step, res.Cost, 1e-9)
			assert.InDelta(t, 19*math.Sqrt(3), res.Path.Length(volume.Isotropic()), 1e-9)
		})
	}
}

// TestUniformPlane checks the 8-connected 2D case: 10 diagonal steps then
// 19 axis steps in some order.
func TestUniformPlane(t *testing.T) {
	v, err := volume.Uniform(30, 30, 1, 50)
	require.NoError(t, err)
	m, h := model(t, v)
	a, b := volume.C(0, 0, 0), volume.C(29, 10, 0)
	want := m.Fn.Cost(50) * (10*math.Sqrt2 + 19)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			res := run(t, mode, m, h, a, b)
			assertValidPath(t, m, res, a, b)
			assert.Equal(t, 30, res.Path.Len())
			assert.InDelta(t, want, res.Cost, 1e-9)
			for _, c := range res.Path.Coords {
				assert.Zero(t, c.Z)
			}
		})
	}
}

// reference is a plain O(V²) Dijkstra over the same graph.
func reference(m *cost.Model, a, b volume.Coord) float64 {
	w, h, d := m.Sampler.Bounds()
	sp := volume.SpacingOf(m.Sampler)
	offs := volume.Offsets(m.Sampler)
	n := w * h * d
	idx := func(c volume.Coord) int { return (c.Z*h+c.Y)*w + c.X }
	coord := func(i int) volume.Coord { return volume.C(i%w, (i/w)%h, i/(w*h)) }

	dist := make([]float64, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[idx(a)] = 0
	for {
		u := -1
		for i := 0; i < n; i++ {
			if !done[i] && (u < 0 || dist[i] < dist[u]) {
				u = i
			}
		}
		if u < 0 || math.IsInf(dist[u], 1) {
			return math.Inf(1)
		}
		if u == idx(b) {
			return dist[u]
		}
		done[u] = true
		uc := coord(u)
		for _, o := range offs {
			vc := uc.Add(o)
			if !volume.InBounds(m.Sampler, vc) {
				continue
			}
			if g := dist[u] + m.At(vc)*volume.StepLength(sp, o); g < dist[idx(vc)] {
				dist[idx(vc)] = g
			}
		}
	}
}

func randomVolume(t testing.TB, rng *rand.Rand, w, h, d int, opts ...volume.Option) *volume.Volume {
	t.Helper()
	v, err := volume.New(w, h, d, opts...)
	require.NoError(t, err)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v.Set(x, y, z, float32(1+rng.Intn(255)))
			}
		}
	}
	v.Refresh()

	return v
}

func randomCoord(rng *rand.Rand, w, h, d int) volume.Coord {
	return volume.C(rng.Intn(w), rng.Intn(h), rng.Intn(d))
}

// TestMatchesReference compares both modes and both stores with brute-force
// Dijkstra on random volumes, including anisotropic spacing and 2D.
func TestMatchesReference(t *testing.T) {
	cases := []struct {
		name    string
		w, h, d int
		opts    []volume.Option
	}{
		{"Cube", 7, 6, 5, nil},
		{"Anisotropic", 6, 6, 6, []volume.Option{volume.WithSpacing(0.5, 0.5, 2)}},
		{"Plane", 16, 12, 1, nil},
	}
	stores := []search.StoreKind{search.StoreDense, search.StoreSparse}

	rng := rand.New(rand.NewSource(7))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := randomVolume(t, rng, tc.w, tc.h, tc.d, tc.opts...)
			m, h := model(t, v)
			for trial := 0; trial < 6; trial++ {
				a := randomCoord(rng, tc.w, tc.h, tc.d)
				b := randomCoord(rng, tc.w, tc.h, tc.d)
				if a == b {
					continue
				}
				want := reference(m, a, b)
				for _, mode := range modes {
					for _, sk := range stores {
						res := run(t, mode, m, h, a, b, search.WithStore(sk))
						assertValidPath(t, m, res, a, b)
						assert.InDelta(t, want, res.Cost, 1e-9*want, "%s %s→%s store=%d", mode, a, b, sk)
					}
				}
			}
		})
	}
}

// TestStoresAgree checks that dense and sparse backing produce the same
// path and the same counters.
func TestStoresAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	v := randomVolume(t, rng, 12, 12, 8)
	m, h := model(t, v)
	a, b := volume.C(0, 1, 2), volume.C(11, 9, 6)

	for _, mode := range modes {
		dense := run(t, mode, m, h, a, b, search.WithStore(search.StoreDense))
		sparse := run(t, mode, m, h, a, b, search.WithStore(search.StoreSparse))
		auto := run(t, mode, m, h, a, b, search.WithDenseLimit(10))
		assert.Equal(t, dense.Path.Coords, sparse.Path.Coords, mode.String())
		assert.Equal(t, dense.Stats, sparse.Stats, mode.String())
		assert.Equal(t, sparse.Stats, auto.Stats, mode.String())
	}
}

// TestBridge follows a bright line through a dark volume instead of the
// geometrically shorter route through the background.
func TestBridge(t *testing.T) {
	v, err := volume.Uniform(21, 21, 21, 1)
	require.NoError(t, err)
	// An L-shaped ridge in the plane z=10: along x at y=4, then along y at x=16.
	for x := 4; x <= 16; x++ {
		v.Set(x, 4, 10, 200)
	}
	for y := 4; y <= 16; y++ {
		v.Set(16, y, 10, 200)
	}
	v.Refresh()
	m, h := model(t, v)
	a, b := volume.C(4, 4, 10), volume.C(16, 16, 10)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			res := run(t, mode, m, h, a, b)
			assertValidPath(t, m, res, a, b)
			for _, c := range res.Path.Coords {
				assert.Equal(t, float32(200), v.At(c.X, c.Y, c.Z), "path left the ridge at %s", c)
			}
			assert.Contains(t, res.Path.Coords, volume.C(10, 4, 10))
			assert.Contains(t, res.Path.Coords, volume.C(16, 10, 10))
		})
	}
}

// TestBidirectionalExpandsLess runs both modes as plain Dijkstra on a
// symmetric field.
func TestBidirectionalExpandsLess(t *testing.T) {
	v, err := volume.Uniform(15, 15, 15, 10)
	require.NoError(t, err)
	m, _ := model(t, v)
	a, b := volume.C(1, 7, 7), volume.C(13, 7, 7)

	uni := run(t, search.Unidirectional, m, cost.ZeroHeuristic{}, a, b)
	bi := run(t, search.Bidirectional, m, cost.ZeroHeuristic{}, a, b)
	assertValidPath(t, m, uni, a, b)
	assertValidPath(t, m, bi, a, b)
	assert.InDelta(t, uni.Cost, bi.Cost, 1e-9)
	assert.LessOrEqual(t, bi.Stats.Expanded, uni.Stats.Expanded)
	assert.Less(t, bi.Stats.Opened, uni.Stats.Opened)
}

// countingSampler cancels a context after a fixed number of samples.
type countingSampler struct {
	*volume.Volume
	n      atomic.Int64
	limit  int64
	cancel context.CancelFunc
}

func (c *countingSampler) Sample(x, y, z int) float64 {
	if c.n.Add(1) == c.limit {
		c.cancel()
	}

	return c.Volume.Sample(x, y, z)
}

// TestCancellation stops a running search within one expansion.
func TestCancellation(t *testing.T) {
	v, err := volume.Uniform(40, 40, 40, 10)
	require.NoError(t, err)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			cs := &countingSampler{Volume: v, limit: 500, cancel: cancel}
			m, _ := model(t, cs)
			a, b := volume.C(0, 0, 0), volume.C(39, 39, 39)

			s, err := search.New(mode, m, cost.ZeroHeuristic{}, a, b)
			require.NoError(t, err)
			res := s.Run(ctx)
			assert.Equal(t, search.Cancelled, res.Status)
			assert.Equal(t, search.Cancelled, s.Status())
			assert.ErrorIs(t, res.Err, context.Canceled)
			assert.Nil(t, res.Path)
			// Every expansion before the cancel sampled at least one voxel.
			assert.LessOrEqual(t, res.Stats.Expanded, 500)
		})
	}

	t.Run("BeforeStart", func(t *testing.T) {
		m, h := model(t, v)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s, err := search.New(search.Unidirectional, m, h, volume.C(0, 0, 0), volume.C(1, 1, 1))
		require.NoError(t, err)
		res := s.Run(ctx)
		assert.Equal(t, search.Cancelled, res.Status)
		assert.Zero(t, res.Stats.Expanded)
	})
}

// TestExpansionLimit fails with ErrExpansionLimit once the cap is hit.
func TestExpansionLimit(t *testing.T) {
	v, err := volume.Uniform(20, 20, 20, 10)
	require.NoError(t, err)
	m, _ := model(t, v)
	for _, mode := range modes {
		res := run(t, mode, m, cost.ZeroHeuristic{}, volume.C(0, 0, 0), volume.C(19, 19, 19), search.WithMaxExpansions(10))
		assert.Equal(t, search.Failed, res.Status, mode.String())
		assert.ErrorIs(t, res.Err, search.ErrExpansionLimit)
		assert.Equal(t, 10, res.Stats.Expanded)
	}
}

// TestNew_Errors covers synchronous configuration errors.
func TestNew_Errors(t *testing.T) {
	v, err := volume.Uniform(5, 5, 5, 1)
	require.NoError(t, err)
	m, h := model(t, v)
	in, out := volume.C(1, 1, 1), volume.C(5, 0, 0)

	cases := []struct {
		name string
		mode search.Mode
		m    *cost.Model
		h    cost.Heuristic
		a, b volume.Coord
		err  error
	}{
		{"UnknownMode", 0, m, h, in, volume.C(0, 0, 0), search.ErrUnknownMode},
		{"NilModel", search.Unidirectional, nil, h, in, volume.C(0, 0, 0), search.ErrNilModel},
		{"NilHeuristic", search.Unidirectional, m, nil, in, volume.C(0, 0, 0), search.ErrNilHeuristic},
		{"StartOutside", search.Bidirectional, m, h, out, in, volume.ErrOutOfBounds},
		{"GoalOutside", search.Unidirectional, m, h, in, volume.C(0, -1, 0), volume.ErrOutOfBounds},
		{"SameEndpoints", search.Bidirectional, m, h, in, in, search.ErrSameEndpoints},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := search.New(tc.mode, tc.m, tc.h, tc.a, tc.b)
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, s)
		})
	}
}

// TestRunTwice rejects reuse of a finished search.
func TestRunTwice(t *testing.T) {
	v, err := volume.Uniform(4, 4, 4, 1)
	require.NoError(t, err)
	m, h := model(t, v)
	s, err := search.New(search.Unidirectional, m, h, volume.C(0, 0, 0), volume.C(3, 3, 3))
	require.NoError(t, err)
	require.Equal(t, search.Succeeded, s.Run(context.Background()).Status)

	res := s.Run(context.Background())
	assert.Equal(t, search.Failed, res.Status)
	assert.ErrorIs(t, res.Err, search.ErrAlreadyRun)
	assert.Equal(t, search.Succeeded, s.Status())
}

// TestProgress receives a final report equal to the result counters.
func TestProgress(t *testing.T) {
	v, err := volume.Uniform(10, 10, 10, 1)
	require.NoError(t, err)
	m, h := model(t, v)

	var calls int
	var lastOpened, lastClosed int
	res := run(t, search.Unidirectional, m, h, volume.C(0, 0, 0), volume.C(9, 5, 2),
		search.WithProgress(func(opened, closed int) {
			calls++
			assert.GreaterOrEqual(t, opened, closed)
			lastOpened, lastClosed = opened, closed
		}),
		search.WithProgressInterval(0))
	require.Equal(t, search.Succeeded, res.Status)
	assert.GreaterOrEqual(t, calls, 1)
	assert.Equal(t, res.Stats.Opened, lastOpened)
	assert.Equal(t, res.Stats.Closed, lastClosed)
}

// TestProgress_Interval reports on every expansion with a zero interval and
// only the first and final report with a long one.
func TestProgress_Interval(t *testing.T) {
	v, err := volume.Uniform(10, 10, 10, 1)
	require.NoError(t, err)
	m, h := model(t, v)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			var every int
			res := run(t, mode, m, h, volume.C(0, 0, 0), volume.C(9, 9, 9),
				search.WithProgress(func(int, int) { every++ }),
				search.WithProgressInterval(0))
			require.Equal(t, search.Succeeded, res.Status)
			require.Greater(t, res.Stats.Expanded, 1)
			assert.GreaterOrEqual(t, every, res.Stats.Expanded)

			var throttled int
			res = run(t, mode, m, h, volume.C(0, 0, 0), volume.C(9, 9, 9),
				search.WithProgress(func(int, int) { throttled++ }),
				search.WithProgressInterval(time.Hour))
			require.Equal(t, search.Succeeded, res.Status)
			assert.LessOrEqual(t, throttled, 2)
			assert.GreaterOrEqual(t, throttled, 1)
		})
	}
}

// TestParseMode accepts names and aliases.
func TestParseMode(t *testing.T) {
	for in, want := range map[string]search.Mode{
		"astar": search.Unidirectional, "Unidirectional": search.Unidirectional,
		"nba": search.Bidirectional, " bidirectional ": search.Bidirectional,
	} {
		got, err := search.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := search.ParseMode("greedy")
	assert.ErrorIs(t, err, search.ErrUnknownMode)
	assert.Equal(t, "cancelled", search.Cancelled.String())
	assert.True(t, search.Failed.Terminal())
	assert.False(t, search.Running.Terminal())
}

func BenchmarkSearch(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	v := randomVolume(b, rng, 64, 64, 32)
	m, h := model(b, v)
	a, g := volume.C(2, 2, 2), volume.C(61, 60, 29)

	for _, mode := range modes {
		b.Run(mode.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				s, err := search.New(mode, m, h, a, g)
				if err != nil {
					b.Fatal(err)
				}
				if res := s.Run(context.Background()); res.Status != search.Succeeded {
					b.Fatal(res.Err)
				}
			}
		})
	}
}

// TestPathReverse keeps the total cost and flips the order.
func TestPathReverse(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	v := randomVolume(t, rng, 8, 8, 4)
	m, h := model(t, v)
	res := run(t, search.Bidirectional, m, h, volume.C(0, 0, 0), volume.C(7, 5, 3))
	require.Equal(t, search.Succeeded, res.Status)

	r := res.Path.Reverse()
	n := r.Len()
	require.Equal(t, res.Path.Len(), n)
	assert.Equal(t, res.Path.Coords[0], r.Coords[n-1])
	assert.Equal(t, res.Path.Points[n-1], r.Points[0])
	assert.Zero(t, r.Cumulative[0])
	assert.InDelta(t, res.Cost, r.Cumulative[n-1], 1e-9)
}

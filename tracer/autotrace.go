package tracer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/neurite/fill"
	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/volume"
)

// AutoTrace traces each consecutive pair of points with the settings of
// tmpl (its Start and Goal are ignored). Segments run concurrently, bounded
// by the worker pool, and are returned in point order. The first failing
// segment cancels the rest and its error is returned.
func (t *Tracer) AutoTrace(ctx context.Context, points []volume.Coord, tmpl Request) ([]*search.Path, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(points))
	}

	// Validate every segment before starting any of them.
	reqs := make([]Request, len(points)-1)
	t.mu.Lock()
	img := t.image(tmpl.Source)
	for i := range reqs {
		reqs[i] = tmpl
		reqs[i].Start, reqs[i].Goal = points[i], points[i+1]
		if err := validate(img, reqs[i]); err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("tracer: segment %d: %w", i, err)
		}
	}
	t.mu.Unlock()

	paths := make([]*search.Path, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			h, err := t.Submit(gctx, req, nil)
			if err != nil {
				return fmt.Errorf("tracer: segment %d: %w", i, err)
			}
			res := h.Wait()
			if res.Status != search.Succeeded {
				return fmt.Errorf("tracer: segment %d %s→%s %s: %w", i, req.Start, req.Goal, res.Status, res.Err)
			}
			paths[i] = res.Path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paths, nil
}

// Join concatenates consecutive segment paths, dropping the duplicated
// junction point of each following segment.
func Join(paths []*search.Path) *search.Path {
	out := &search.Path{}
	var offset float64
	for i, p := range paths {
		from := 0
		if i > 0 {
			from = 1
		}
		for j := from; j < p.Len(); j++ {
			out.Coords = append(out.Coords, p.Coords[j])
			out.Points = append(out.Points, p.Points[j])
			out.Cumulative = append(out.Cumulative, offset+p.Cumulative[j])
		}
		if n := p.Len(); n > 0 {
			offset += p.Cumulative[n-1]
		}
	}

	return out
}

// Fill floods the cost model of tmpl (Start and Goal ignored) from seeds.
// It occupies one worker slot and counts as in-flight work for SetImages.
func (t *Tracer) Fill(ctx context.Context, seeds []volume.Coord, tmpl Request, opts ...fill.Option) (*fill.Result, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	img := t.image(tmpl.Source)
	if img == nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoImage, tmpl.Source)
	}
	if err := validateCost(img, tmpl); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h := &Handle{ID: t.nextID.Add(1), Request: tmpl, cancel: cancel, done: make(chan struct{})}
	t.active[h.ID] = h
	t.wg.Add(1)
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.active, h.ID)
		t.mu.Unlock()
		close(h.done)
		t.wg.Done()
	}()

	began := time.Now()
	res, err := t.fill(fctx, img, seeds, tmpl, opts)
	voxels := 0
	if res != nil {
		voxels = res.Len()
	}
	t.log.LogFill(ctx, len(seeds), voxels, time.Since(began), err)

	return res, err
}

func (t *Tracer) fill(ctx context.Context, img volume.Sampler, seeds []volume.Coord, req Request, opts []fill.Option) (*fill.Result, error) {
	model, err := t.model(ctx, img, req)
	if err != nil {
		return nil, err
	}
	if err := t.pool.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.pool.Release(1)

	return fill.Fill(ctx, model, seeds, opts...)
}

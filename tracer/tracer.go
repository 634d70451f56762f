package tracer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/hessian"
	"github.com/katalvlaran/neurite/internal/logging"
	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/volume"
)

// Tracer runs searches against the loaded images. It is safe for
// concurrent use.
type Tracer struct {
	opts  Options
	log   *logging.Logger
	pool  *semaphore.Weighted
	cache *hessian.Cache

	mu        sync.Mutex
	primary   volume.Sampler
	secondary volume.Sampler
	active    map[uint64]*Handle
	closed    bool

	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// New creates a Tracer with no images loaded.
func New(opts ...Option) *Tracer {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}

	return &Tracer{
		opts:   cfg,
		log:    log.WithComponent("tracer"),
		pool:   semaphore.NewWeighted(int64(cfg.Workers)),
		cache:  hessian.NewCache(hessian.WithWorkers(cfg.FilterWorkers)),
		active: make(map[uint64]*Handle),
	}
}

// Cache exposes the ridge-filter cache.
func (t *Tracer) Cache() *hessian.Cache { return t.cache }

// Active returns the number of searches that have not finished.
func (t *Tracer) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.active)
}

// Busy reports whether any search or filter computation is in flight.
func (t *Tracer) Busy() bool {
	return t.Active() > 0 || t.cache.Busy()
}

// SetImages replaces the primary and optional secondary image and discards
// every cached field. While work is in flight it returns ErrBusy, unless
// force is set, in which case active searches are cancelled first.
func (t *Tracer) SetImages(primary, secondary volume.Sampler, force bool) error {
	if primary == nil {
		return fmt.Errorf("%w: primary is nil", ErrNoImage)
	}
	if err := volume.Validate(primary); err != nil {
		return err
	}
	if secondary != nil {
		if err := volume.Validate(secondary); err != nil {
			return fmt.Errorf("tracer: secondary: %w", err)
		}
		pw, ph, pd := primary.Bounds()
		sw, sh, sd := secondary.Bounds()
		if pw != sw || ph != sh || pd != sd {
			return fmt.Errorf("tracer: secondary is %dx%dx%d, primary %dx%dx%d", sw, sh, sd, pw, ph, pd)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	filtering := t.cache.Busy()
	if (len(t.active) > 0 || filtering) && !force {
		t.log.LogRefused(context.Background(), len(t.active), filtering)
		return ErrBusy
	}
	for _, h := range t.active {
		h.cancel()
	}
	t.cache.InvalidateAll()
	t.primary, t.secondary = newSource(primary), nil
	if secondary != nil {
		t.secondary = newSource(secondary)
	}

	return nil
}

// source is a loaded image whose global statistics are computed at most
// once, on the first request that needs them. A reload replaces the source,
// so searches still running on the old image keep the old statistics.
type source struct {
	volume.Sampler
	once  sync.Once
	stats volume.Stats
}

func newSource(s volume.Sampler) *source { return &source{Sampler: s} }

func (s *source) statistics() volume.Stats {
	s.once.Do(func() { s.stats = volume.Statistics(s.Sampler) })

	return s.stats
}

// unwrap returns the caller's sampler behind img, and the source holding
// its statistics when img is a loaded image.
func unwrap(img volume.Sampler) (volume.Sampler, *source) {
	if s, ok := img.(*source); ok {
		return s.Sampler, s
	}

	return img, nil
}

func (t *Tracer) image(role hessian.Role) volume.Sampler {
	if role == hessian.Secondary {
		return t.secondary
	}

	return t.primary
}

// Submit validates req and starts the search. Validation failures are
// returned before any goroutine is spawned. sink may be nil. The search
// runs until it terminates, ctx ends or the handle is cancelled.
func (t *Tracer) Submit(ctx context.Context, req Request, sink Sink) (*Handle, error) {
	if sink == nil {
		sink = SinkFuncs{}
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	img := t.image(req.Source)
	if err := validate(img, req); err != nil {
		t.mu.Unlock()
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:      t.nextID.Add(1),
		Request: req,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	t.active[h.ID] = h
	t.wg.Add(1)
	t.mu.Unlock()

	t.log.LogSubmit(ctx, h.ID, req.Mode, req.Start.String(), req.Goal.String(), req.Cost.String())
	go t.run(taskCtx, h, img, sink)

	return h, nil
}

// validate performs every configuration check that does not touch voxels.
func validate(img volume.Sampler, req Request) error {
	if img == nil {
		return fmt.Errorf("%w: %s", ErrNoImage, req.Source)
	}
	if req.Mode != search.Unidirectional && req.Mode != search.Bidirectional {
		return fmt.Errorf("%w: %d", search.ErrUnknownMode, req.Mode)
	}
	if err := volume.CheckBounds(img, req.Start); err != nil {
		return fmt.Errorf("tracer: start: %w", err)
	}
	if err := volume.CheckBounds(img, req.Goal); err != nil {
		return fmt.Errorf("tracer: goal: %w", err)
	}
	if req.Start == req.Goal {
		return fmt.Errorf("%w: %s", search.ErrSameEndpoints, req.Start)
	}

	return validateCost(img, req)
}

// validateCost checks the cost kind, its tuning and the heuristic against
// a probe range, and the filter params for curvature costs.
func validateCost(img volume.Sampler, req Request) error {
	probe := req.CostParams
	probe.Min, probe.Max, probe.Mean, probe.StdDev = 0, 1, 0, 1
	fn, err := cost.New(req.Cost, probe)
	if err != nil {
		return err
	}
	if _, err = cost.NewHeuristic(req.Heuristic, volume.SpacingOf(img), fn); err != nil {
		return err
	}
	if req.Cost == cost.Curvature {
		return req.Filter.Validate()
	}

	return nil
}

// event is one message from a search to its forwarding goroutine.
type event struct {
	opened, closed int
	final          bool
	res            search.Result
}

func (t *Tracer) run(ctx context.Context, h *Handle, img volume.Sampler, sink Sink) {
	defer t.wg.Done()

	events := make(chan event, 16)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range events {
			if ev.final {
				sink.OnFinished(ev.res)
				continue
			}
			sink.OnProgress(ev.opened, ev.closed)
		}
	}()

	began := time.Now()
	res := t.execute(ctx, h, img, func(opened, closed int) {
		select {
		case events <- event{opened: opened, closed: closed}:
		default:
		}
	})
	t.log.LogSearch(ctx, h.ID, res, time.Since(began))

	h.res = res
	events <- event{final: true, res: res}
	close(events)
	<-forwarded

	t.mu.Lock()
	delete(t.active, h.ID)
	t.mu.Unlock()
	h.cancel()
	close(h.done)
}

// execute builds the cost model, waits for a worker slot and runs the search.
func (t *Tracer) execute(ctx context.Context, h *Handle, img volume.Sampler, progress search.ProgressFunc) search.Result {
	model, err := t.model(ctx, img, h.Request)
	if err != nil {
		return failure(ctx, err)
	}
	heuristic, err := cost.NewHeuristic(h.Request.Heuristic, volume.SpacingOf(img), model.Fn)
	if err != nil {
		return failure(ctx, err)
	}

	if err := t.pool.Acquire(ctx, 1); err != nil {
		return failure(ctx, err)
	}
	defer t.pool.Release(1)

	s, err := search.New(h.Request.Mode, model, heuristic, h.Request.Start, h.Request.Goal,
		search.WithProgress(progress),
		search.WithProgressInterval(t.opts.ProgressInterval),
		search.WithDenseLimit(t.opts.DenseLimit),
		search.WithMaxExpansions(h.Request.MaxExpansions),
		search.WithMinPathSize(h.Request.MinPathSize),
	)
	if err != nil {
		return failure(ctx, err)
	}

	return s.Run(ctx)
}

// model binds the request's cost function to img, or for curvature costs
// to the ridge field derived from img.
func (t *Tracer) model(ctx context.Context, img volume.Sampler, req Request) (*cost.Model, error) {
	raw, loaded := unwrap(img)
	var src volume.Sampler = raw
	var st volume.Stats
	switch {
	case req.Cost == cost.Curvature:
		field, err := t.field(ctx, req.Source, raw, req.Filter, nil)
		if err != nil {
			return nil, err
		}
		src = field
		st.Min, st.Max = field.IntensityRange()
	case req.Cost == cost.Probability && loaded != nil:
		st = loaded.statistics()
	case req.Cost == cost.Probability:
		st = volume.Statistics(raw)
	default:
		st.Min, st.Max = raw.IntensityRange()
	}
	fn, err := cost.FromStats(req.Cost, st, req.CostParams)
	if err != nil {
		return nil, err
	}

	return cost.NewModel(src, fn)
}

// field requests the ridge field and waits for it. Context errors pass
// through unchanged; any other failure, including a rejected request, is
// wrapped in ErrFilterFailed.
func (t *Tracer) field(ctx context.Context, role hessian.Role, img volume.Sampler, p hessian.Params, progress hessian.ProgressFunc) (*hessian.Field, error) {
	began := time.Now()
	pending, err := t.cache.Request(role, img, p, progress)
	var f *hessian.Field
	if err == nil {
		f, err = pending.Wait(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.log.LogFilter(ctx, role.String(), p.Kind.String(), p.Sigmas, time.Since(began), err)
		return nil, fmt.Errorf("%w: %w", ErrFilterFailed, err)
	}

	return f, nil
}

// failure maps a setup error to a terminal result.
func failure(ctx context.Context, err error) search.Result {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return search.Result{Status: search.Cancelled, Err: err}
	}

	return search.Result{Status: search.Failed, Err: err}
}

// Filter computes (or returns the cached) ridge field of the image in role.
func (t *Tracer) Filter(ctx context.Context, role hessian.Role, p hessian.Params, progress hessian.ProgressFunc) (*hessian.Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	img := t.image(role)
	t.mu.Unlock()
	if img == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImage, role)
	}

	began := time.Now()
	raw, _ := unwrap(img)
	f, err := t.field(ctx, role, raw, p, progress)
	if err == nil {
		t.log.LogFilter(ctx, role.String(), p.Kind.String(), p.Sigmas, time.Since(began), nil)
	}

	return f, err
}

// Close cancels every search, waits for them to finish and releases the
// filter cache. Further calls fail with ErrClosed.
func (t *Tracer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for _, h := range t.active {
		h.cancel()
	}
	t.mu.Unlock()

	t.wg.Wait()
	t.cache.Close()
}

// Handle tracks one submitted search.
type Handle struct {
	ID      uint64
	Request Request

	cancel context.CancelFunc
	done   chan struct{}
	res    search.Result
}

// Cancel requests cooperative cancellation. It is safe to call repeatedly
// and after completion.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed after the sink has received the terminal result.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the search has finished and returns its result.
func (h *Handle) Wait() search.Result {
	<-h.done
	return h.res
}

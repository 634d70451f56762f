package hessian

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/katalvlaran/neurite/volume"
)

type cacheKey struct {
	role Role
	kind Kind
}

// entry is one (role, kind) slot. Its field is published exactly once, before
// done is closed, and never mutated afterwards.
type entry struct {
	params Params
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	progress  float64
	listeners []ProgressFunc
	field     *Field
	err       error
}

func (e *entry) notify(p float64) {
	e.mu.Lock()
	if p >= 0 && p < e.progress {
		e.mu.Unlock()
		return
	}
	e.progress = p
	ls := append([]ProgressFunc(nil), e.listeners...)
	e.mu.Unlock()
	for _, fn := range ls {
		fn(p)
	}
}

func (e *entry) listen(fn ProgressFunc) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	p := e.progress
	e.mu.Unlock()
	fn(p)
}

func (e *entry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Pending is a handle on a cached or in-flight computation.
type Pending struct {
	e *entry
}

// Done is closed when the computation finishes, successfully or not.
func (p *Pending) Done() <-chan struct{} { return p.e.done }

// Wait blocks until the field is available, the computation fails
// (ErrComputationFailed) or ctx ends.
func (p *Pending) Wait(ctx context.Context) (*Field, error) {
	select {
	case <-p.e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.e.mu.Lock()
	defer p.e.mu.Unlock()
	if p.e.err != nil {
		return nil, p.e.err
	}

	return p.e.field, nil
}

// Cache memoises ridge-filter fields per (role, kind). A request with the
// same sigmas returns the cached field without recomputation; a request with
// different sigmas discards the previous field and triggers exactly one new
// computation. Cache is safe for concurrent use.
type Cache struct {
	opts Options

	mu      sync.Mutex
	entries map[cacheKey]*entry

	computations atomic.Int64
	inflight     atomic.Int64
	wg           sync.WaitGroup

	// compute is swapped in tests to inject failures.
	compute func(ctx context.Context, s volume.Sampler, p Params, opts ...Option) (*Field, error)
}

// NewCache creates an empty cache. WithWorkers bounds each computation's
// parallelism; WithProgress is ignored (progress is per request).
func NewCache(opts ...Option) *Cache {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Progress = nil

	return &Cache{opts: cfg, entries: make(map[cacheKey]*entry), compute: Compute}
}

// Get returns the completed field for role and p, if one is cached.
func (c *Cache) Get(role Role, p Params) (*Field, bool) {
	c.mu.Lock()
	e := c.entries[cacheKey{role, p.Kind}]
	c.mu.Unlock()
	if e == nil || !e.finished() || !e.params.Equal(p) {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.field, e.err == nil
}

// Request returns a handle on the field for (role, p) computed from s.
// A cached or in-flight computation with equal params is reused; otherwise
// the previous entry is cancelled and discarded and a new computation starts
// on its own goroutine. progress, if non-nil, immediately receives the current
// progress and then every update. Invalid params are rejected synchronously.
func (c *Cache) Request(role Role, s volume.Sampler, p Params, progress ProgressFunc) (*Pending, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := volume.Validate(s); err != nil {
		return nil, err
	}
	k := cacheKey{role, p.Kind}

	c.mu.Lock()
	if e := c.entries[k]; e != nil && e.params.Equal(p) && !failed(e) {
		c.mu.Unlock()
		e.listen(progress)
		return &Pending{e: e}, nil
	}
	if old := c.entries[k]; old != nil {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{params: p.clone(), cancel: cancel, done: make(chan struct{})}
	c.entries[k] = e
	c.computations.Add(1)
	c.inflight.Add(1)
	c.wg.Add(1)
	c.mu.Unlock()

	e.listen(progress)
	go c.run(ctx, e, s)

	return &Pending{e: e}, nil
}

func failed(e *entry) bool {
	if !e.finished() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.err != nil
}

func (c *Cache) run(ctx context.Context, e *entry, s volume.Sampler) {
	defer c.wg.Done()
	defer e.cancel()

	f, err := c.compute(ctx, s, e.params, WithWorkers(c.opts.Workers), WithProgress(func(p float64) {
		if p >= 0 && p < 1 {
			e.notify(p)
		}
	}))
	if err == nil && f == nil {
		err = errors.New("hessian: computation returned no field")
	}

	// Terminal state, listeners and the inflight counter are settled before
	// done is closed so waiters observe a consistent cache.
	e.mu.Lock()
	if err != nil {
		e.err = fmt.Errorf("%w: %s: %w", ErrComputationFailed, e.params.Kind, err)
		e.progress = -1
	} else {
		e.field = f
		e.progress = 1
	}
	final := e.progress
	ls := append([]ProgressFunc(nil), e.listeners...)
	e.mu.Unlock()
	for _, fn := range ls {
		fn(final)
	}
	c.inflight.Add(-1)
	close(e.done)
}

// Invalidate cancels and discards the entries for role.
func (c *Cache) Invalidate(role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if k.role == role {
			e.cancel()
			delete(c.entries, k)
		}
	}
}

// InvalidateAll cancels and discards every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		e.cancel()
		delete(c.entries, k)
	}
}

// Computations returns the number of filter computations started so far.
func (c *Cache) Computations() int64 { return c.computations.Load() }

// Busy reports whether any computation is in flight.
func (c *Cache) Busy() bool { return c.inflight.Load() > 0 }

// Close cancels all work and waits for computation goroutines to exit.
func (c *Cache) Close() {
	c.InvalidateAll()
	c.wg.Wait()
}

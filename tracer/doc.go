// Package tracer orchestrates path searches over the loaded images.
//
// A Tracer owns the primary and optional secondary image, a hessian.Cache
// of ridge-filter fields derived from them, and a bounded pool of search
// workers. Submit validates a Request synchronously, then runs the search on
// its own goroutine with its own node store and returns a Handle that can be
// cancelled or waited on. Progress and the terminal result are delivered to
// a Sink from a forwarding goroutine, so a slow sink never stalls a search.
//
// Curvature costs read a field from the cache. The search waits for that
// field; if the filter fails the search fails with ErrFilterFailed and never
// substitutes a different cost.
//
// Images are immutable while work is in flight: SetImages returns ErrBusy
// when any search or filter computation is running, unless forced, in which
// case active searches are cancelled before the swap.
//
// AutoTrace traces consecutive pairs of a point list concurrently and Fill
// floods the cost model from seed voxels.
package tracer

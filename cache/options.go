package cache

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetain is how long a new request stays reusable when neither the
// call nor Options.DefaultRetain says otherwise.
const DefaultRetain = 10 * time.Minute

// FetchFunc performs the underlying network call for (url, data).
// The error is handed verbatim to every subscriber of the request.
type FetchFunc[V any] func(ctx context.Context, url string, data any) (V, error)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Batched()
	Actual()
	Forced()
	Evict(n int)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe; defaults are applied in New():
//   - nil Scheduler      => FrameScheduler{}
//   - nil Metrics        => NoopMetrics
//   - nil Clock          => time.Now()
//   - nil Logger         => discard
//   - DefaultRetain <= 0 => DefaultRetain (10m)
//   - Shards <= 0        => auto (rounded up to power of two)
type Options[V any] struct {
	// Fetch performs the network call. Required.
	Fetch FetchFunc[V]

	// DefaultRetain applies to requests whose RequestOptions.Retain is zero.
	DefaultRetain time.Duration

	// Shards splits the key space to reduce lock contention.
	Shards int

	// Scheduler decides when a batched pass runs after the first admission.
	Scheduler Scheduler

	// Observability
	Metrics Metrics
	Logger  *slog.Logger
	// OnEvict is called outside any lock for every request retired by cleanup.
	OnEvict func(r *Request[V])

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}

// RequestOptions are the per-call cache options.
type RequestOptions struct {
	// Force skips the cache-hit lookup. The call may still join an identical
	// in-flight request, and its result stays reusable by later calls.
	Force bool

	// AllowedAge is the maximum age (milliseconds since creation) of a
	// successful request that may be reused. Zero is a strict requirement,
	// not "caching disabled".
	AllowedAge time.Duration

	// Retain is how long a request created by this call stays reusable.
	// Zero means Options.DefaultRetain. It does not affect reuse of existing entries.
	Retain time.Duration
}

package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HarshavardhanDanda/querycache/internal/util"
)

var (
	// ErrClosed is returned by Request after Close, and rejects requests
	// that were still waiting for a pass when the cache closed.
	ErrClosed = errors.New("cache: closed")
	// ErrUnhashableData is returned when the query data cannot be encoded into a key.
	ErrUnhashableData = errors.New("cache: query data cannot be encoded")
)

// Cache coalesces and caches read queries. All methods are safe for
// concurrent use by multiple goroutines.
//
// New requests are not fetched immediately: the first admission schedules a
// pass on the configured Scheduler, and every request still waiting when the
// pass runs is fetched then. Identical calls made before the pass share one
// Request.
type Cache[V any] struct {
	shards []*shard[V]
	opt    Options[V]
	log    *slog.Logger

	// base context for fetches; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	schedMu   sync.Mutex
	scheduled bool // guarded by schedMu; a pass is pending

	stats counters
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Metrics   -> NoopMetrics
//   - nil Scheduler -> FrameScheduler
//   - Shards <= 0   -> auto, rounded up to the next power of two
func New[V any](opt Options[V]) *Cache[V] {
	if opt.Fetch == nil {
		panic("cache: Options.Fetch must be set")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Scheduler == nil {
		opt.Scheduler = FrameScheduler{}
	}
	if opt.DefaultRetain <= 0 {
		opt.DefaultRetain = DefaultRetain
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	sh := util.ShardCount(opt.Shards)
	shards := make([]*shard[V], sh)
	for i := range shards {
		shards[i] = newShard[V]()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache[V]{
		shards: shards,
		opt:    opt,
		log:    opt.Logger.With(slog.String("component", "querycache")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Request returns the shared Request for (url, data). In order, it returns
// the freshest reusable success (unless opt.Force), else an identical
// in-flight request, else a new request that the next pass will fetch.
//
// data is kept by reference and read again when the request is fetched on a
// later pass. It must not be modified after the call.
//
// The error is non-nil only after Close or when data cannot be encoded.
func (c *Cache[V]) Request(url string, data any, opt RequestOptions) (*Request[V], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	key, err := Key(url, data)
	if err != nil {
		return nil, err
	}
	retain := opt.Retain
	if retain == 0 {
		retain = c.opt.DefaultRetain
	}

	c.stats.total.Inc()
	if opt.Force {
		c.stats.forced.Inc()
		c.opt.Metrics.Forced()
	}

	now := c.now()
	r, d := c.getShard(key).admit(key, now, opt, func() *Request[V] {
		return newRequest[V](key, url, data, now, retain)
	})

	if d != decisionHit && !opt.Force {
		c.stats.misses.Inc()
		c.opt.Metrics.Miss()
	}
	switch d {
	case decisionHit:
		c.stats.hits.Inc()
		c.opt.Metrics.Hit()
	case decisionBatched:
		c.stats.batched.Inc()
		c.opt.Metrics.Batched()
	case decisionActual:
		c.stats.actual.Inc()
		c.opt.Metrics.Actual()
		c.schedule()
	}

	c.log.Debug("query admitted",
		slog.String("decision", d.String()),
		slog.String("url", url),
		slog.Bool("forced", opt.Force),
		slog.Any("request_id", r.ID()),
	)
	return r, nil
}

// Get is Request followed by Wait. Cancelling ctx abandons the wait only; the
// shared fetch keeps running for its other subscribers.
func (c *Cache[V]) Get(ctx context.Context, url string, data any, opt RequestOptions) (V, error) {
	r, err := c.Request(url, data, opt)
	if err != nil {
		var zero V
		return zero, err
	}
	return r.Wait(ctx)
}

// Cleanup retires every completed request whose validUntil has passed and
// returns how many were removed. It runs after each pass and is safe to call
// at any time.
func (c *Cache[V]) Cleanup() int {
	now := c.now()
	var evicted []*Request[V]
	for _, s := range c.shards {
		evicted = s.cleanup(now, evicted)
	}

	if n := len(evicted); n > 0 {
		c.stats.evicted.Add(uint64(n))
		c.opt.Metrics.Evict(n)
		c.log.Debug("expired queries removed", slog.Int("evicted", n))
		if cb := c.opt.OnEvict; cb != nil {
			for _, r := range evicted {
				cb(r)
			}
		}
	}
	c.opt.Metrics.Size(c.Len())
	return len(evicted)
}

// Len returns the number of resident requests across all keys.
func (c *Cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Stats returns a snapshot of the decision counters.
func (c *Cache[V]) Stats() Stats { return c.stats.snapshot() }

// Close rejects requests still waiting for a pass with ErrClosed, cancels
// the context of in-flight fetches and makes later Request calls fail.
// Subsequent calls are no-ops.
func (c *Cache[V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	for _, r := range c.waiting() {
		if r.activate() {
			r.complete(*new(V), ErrClosed, c.now())
		}
	}
	c.cancel()
	return nil
}

// ---- scheduling ----

// schedule arranges a pass unless one is already pending.
func (c *Cache[V]) schedule() {
	c.schedMu.Lock()
	if c.scheduled {
		c.schedMu.Unlock()
		return
	}
	c.scheduled = true
	c.schedMu.Unlock()

	c.opt.Scheduler.Schedule(c.runPass)
}

// runPass fetches every waiting request, then runs cleanup.
//
// The pending flag is cleared before collecting: a request admitted
// concurrently is either collected here or schedules the next pass itself.
func (c *Cache[V]) runPass() {
	c.schedMu.Lock()
	c.scheduled = false
	c.schedMu.Unlock()

	waiting := c.waiting()
	if len(waiting) > 0 {
		c.log.Debug("running query pass", slog.Int("waiting", len(waiting)))
	}
	for _, r := range waiting {
		go c.doRequest(r)
	}
	c.Cleanup()
}

func (c *Cache[V]) waiting() []*Request[V] {
	var out []*Request[V]
	for _, s := range c.shards {
		out = s.appendWaiting(out)
	}
	return out
}

// doRequest executes r at most once: Waiting -> Active -> Success | Failure.
func (c *Cache[V]) doRequest(r *Request[V]) {
	if !r.activate() {
		return
	}
	start := time.Now()
	v, err := c.opt.Fetch(c.ctx, r.url, r.data)
	if err != nil {
		c.log.Warn("query failed",
			slog.String("url", r.url),
			slog.Any("request_id", r.id),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
	}
	r.complete(v, err, c.now())
}

// ---- helpers ----

// getShard picks a shard by hashing the key and masking with len-1.
// len(c.shards) is guaranteed to be a power of two.
func (c *Cache[V]) getShard(key string) *shard[V] {
	return c.shards[util.ShardIndex(key, len(c.shards))]
}

func (c *Cache[V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

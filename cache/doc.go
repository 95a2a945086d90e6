// Package cache is the query cache and request-coalescing layer that sits
// between read call sites and the network.
//
// It solves three problems:
//
//   - Coalescing: a query identical to one already waiting or in flight
//     joins that Request instead of issuing a second fetch.
//   - Caching: a recent successful result is served again, subject to the
//     caller's AllowedAge and the creator's Retain window.
//   - Batching: new requests are not fetched on admission. The first
//     admission schedules a pass on the Scheduler, and everything admitted
//     before it runs is deduplicated first.
//
// Design
//
//   - Keys: Key(url, data) is the url plus the JSON encoding of data. It is
//     the only admission criterion.
//
//   - Storage: the key space is split into shards, each protected by a
//     mutex. A shard keeps map[key][]*Request in creation order plus an
//     expiry min-heap on validUntil, so cleanup cost follows the number of
//     expired entries.
//
//   - Lifecycle: a Request moves Waiting -> Active -> Success | Failure and
//     settles its future exactly once; every subscriber sees the same value
//     or error. Failures are never retried by the cache.
//
//   - Expiry: a Request is never reused after ValidUntil. Cleanup runs after
//     each pass and removes expired completed requests; in-flight requests
//     are never evicted.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Batched/Actual/Forced/
//     Evict/Size signals. Stats returns the counters as a snapshot.
//
// Basic usage
//
//	c := cache.New(cache.Options[json.RawMessage]{Fetch: client.Fetch})
//	defer c.Close()
//
//	r, err := c.Request("/api/runs", url.Values{"lab": {"l1"}}, cache.RequestOptions{AllowedAge: 30 * time.Second})
//	if err != nil {
//	    return err
//	}
//	r.OnSuccess(render).OnFailure(showError)
//
// Deterministic ticks (tests, custom event loops)
//
//	sched := &cache.ManualScheduler{}
//	c := cache.New(cache.Options[string]{Fetch: fetch, Scheduler: sched})
//	a, _ := c.Request("/api/x", map[string]int{"q": 1}, cache.RequestOptions{})
//	b, _ := c.Request("/api/x", map[string]int{"q": 1}, cache.RequestOptions{})
//	// a == b; nothing has been fetched yet
//	sched.Flush()
package cache

package cache

import "github.com/HarshavardhanDanda/querycache/internal/util"

// Stats is a snapshot of the cache decision counters. Every field only grows.
//
// Each Request call bumps Total, then exactly one of Hits, Batched or Actual.
// Misses counts non-forced calls that found no reusable success; Forced
// counts calls with RequestOptions.Force.
type Stats struct {
	Total   uint64
	Actual  uint64
	Batched uint64
	Hits    uint64
	Misses  uint64
	Forced  uint64
	Evicted uint64
}

// HitRatio returns Hits/Total, or 0 before the first request.
func (s Stats) HitRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}

type counters struct {
	total   util.Counter
	actual  util.Counter
	batched util.Counter
	hits    util.Counter
	misses  util.Counter
	forced  util.Counter
	evicted util.Counter
}

func (c *counters) snapshot() Stats {
	return Stats{
		Total:   c.total.Load(),
		Actual:  c.actual.Load(),
		Batched: c.batched.Load(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Forced:  c.forced.Load(),
		Evicted: c.evicted.Load(),
	}
}

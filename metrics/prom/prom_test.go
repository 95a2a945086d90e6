package prom

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshavardhanDanda/querycache/cache"
)

func TestAdapter_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "qc", "test", prometheus.Labels{"app": "lab"})

	a.Hit()
	a.Miss()
	a.Miss()
	a.Batched()
	a.Actual()
	a.Forced()
	a.Evict(3)
	a.Size(7)

	assert.InDelta(t, 1, testutil.ToFloat64(a.hits), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(a.misses), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.batched), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.actual), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.forced), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(a.evicts), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(a.size), 0)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

// The adapter mirrors the cache's own Stats when wired in.
func TestAdapter_WiredIntoCache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "qc", "wired", nil)
	sched := &cache.ManualScheduler{}
	c := cache.New(cache.Options[string]{
		Fetch:     func(context.Context, string, any) (string, error) { return "ok", nil },
		Scheduler: sched,
		Metrics:   a,
	})
	t.Cleanup(func() { _ = c.Close() })

	r, err := c.Request("/api/x", nil, cache.RequestOptions{})
	require.NoError(t, err)
	_, err = c.Request("/api/x", nil, cache.RequestOptions{})
	require.NoError(t, err)
	sched.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = r.Wait(ctx)
	require.NoError(t, err)

	_, err = c.Request("/api/x", nil, cache.RequestOptions{AllowedAge: time.Minute})
	require.NoError(t, err)

	st := c.Stats()
	assert.InDelta(t, float64(st.Hits), testutil.ToFloat64(a.hits), 0)
	assert.InDelta(t, float64(st.Misses), testutil.ToFloat64(a.misses), 0)
	assert.InDelta(t, float64(st.Batched), testutil.ToFloat64(a.batched), 0)
	assert.InDelta(t, float64(st.Actual), testutil.ToFloat64(a.actual), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.size), 0)
}

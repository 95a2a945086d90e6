// Package prom exports query cache decisions as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HarshavardhanDanda/querycache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	batched prometheus.Counter
	actual  prometheus.Counter
	forced  prometheus.Counter
	evicts  prometheus.Counter
	size    prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:    counter("hits_total", "Queries served from a cached success"),
		misses:  counter("misses_total", "Non-forced queries without a reusable success"),
		batched: counter("batched_total", "Queries joined to an in-flight request"),
		actual:  counter("actual_total", "Queries that created a new request"),
		forced:  counter("forced_total", "Queries that bypassed the cache lookup"),
		evicts:  counter("evictions_total", "Expired requests removed by cleanup"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident requests",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.batched, a.actual, a.forced, a.evicts, a.size)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Batched increments the coalesced-request counter.
func (a *Adapter) Batched() { a.batched.Inc() }

// Actual increments the new-request counter.
func (a *Adapter) Actual() { a.actual.Inc() }

// Forced increments the forced-request counter.
func (a *Adapter) Forced() { a.forced.Inc() }

// Evict adds n removed requests.
func (a *Adapter) Evict(n int) { a.evicts.Add(float64(n)) }

// Size sets the resident request gauge.
func (a *Adapter) Size(entries int) { a.size.Set(float64(entries)) }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

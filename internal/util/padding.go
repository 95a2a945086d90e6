package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// Counter is a monotonically increasing atomic counter padded to one cache
// line, so the decision counters bumped on every request do not share lines.
type Counter struct {
	n atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() uint64 { return c.n.Add(1) }

// Add adds delta and returns the new value.
func (c *Counter) Add(delta uint64) uint64 { return c.n.Add(delta) }

// Load returns the current value.
func (c *Counter) Load() uint64 { return c.n.Load() }

var _ [CacheLineSize - int(unsafe.Sizeof(Counter{}))]byte

package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HarshavardhanDanda/querycache/future"
)

// Status is the lifecycle state of a Request.
// Transitions are strictly Waiting -> Active -> (Success | Failure).
type Status int32

const (
	// StatusWaiting: admitted, not yet picked up by a scheduled pass.
	StatusWaiting Status = iota
	// StatusActive: the fetch is in flight.
	StatusActive
	// StatusSuccess: the fetch resolved; the entry is cacheable.
	StatusSuccess
	// StatusFailure: the fetch failed; the entry is never returned as a hit.
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Success or Failure.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailure }

// InFlight reports whether s is Waiting or Active.
func (s Status) InFlight() bool { return s == StatusWaiting || s == StatusActive }

// Request is one logical fetch shared by every caller that asked for the same
// query while it was reusable. Callers observe it through the embedded
// future; only the cache mutates it.
type Request[V any] struct {
	*future.Future[V]
	promise *future.Promise[V]

	id   uuid.UUID
	key  string
	url  string
	data any

	// UnixNano timestamps.
	createdAt  int64
	validUntil int64

	mu          sync.Mutex
	status      Status
	completedAt int64 // zero until terminal
}

func newRequest[V any](key, url string, data any, now int64, retain time.Duration) *Request[V] {
	p := future.New[V]()
	return &Request[V]{
		Future:     p.Future(),
		promise:    p,
		id:         uuid.New(),
		key:        key,
		url:        url,
		data:       data,
		createdAt:  now,
		validUntil: now + int64(retain),
		status:     StatusWaiting,
	}
}

// ID is a random identifier used to correlate log lines; it plays no part in caching.
func (r *Request[V]) ID() uuid.UUID { return r.id }

// Key returns the cache key the request is stored under.
func (r *Request[V]) Key() string { return r.key }

// URL returns the fetched resource locator.
func (r *Request[V]) URL() string { return r.url }

// Data returns the query parameters the request was created with. It is the
// caller's value, not a copy, and must be treated as read-only.
func (r *Request[V]) Data() any { return r.data }

// CreatedAt returns the admission time of the request.
func (r *Request[V]) CreatedAt() time.Time { return time.Unix(0, r.createdAt) }

// ValidUntil returns the instant after which the request is never reused.
func (r *Request[V]) ValidUntil() time.Time { return time.Unix(0, r.validUntil) }

// Status returns the current lifecycle state.
func (r *Request[V]) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CompletedAt returns the completion time; ok is false until the status is terminal.
func (r *Request[V]) CompletedAt() (t time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Terminal() {
		return time.Time{}, false
	}
	return time.Unix(0, r.completedAt), true
}

// ValidAt reports whether the request may still be reused at t.
func (r *Request[V]) ValidAt(t time.Time) bool { return r.validAt(t.UnixNano()) }

// TooOld reports whether the request is older than allowedAge at t.
// Age is counted in milliseconds from creation, so an allowedAge of zero
// accepts only a request created within the same millisecond.
func (r *Request[V]) TooOld(allowedAge time.Duration, t time.Time) bool {
	return r.tooOld(allowedAge, t.UnixNano())
}

func (r *Request[V]) validAt(now int64) bool { return now < r.validUntil }

func (r *Request[V]) tooOld(allowedAge time.Duration, now int64) bool {
	age := time.Duration(now - r.createdAt).Truncate(time.Millisecond)
	return age > allowedAge
}

// activate moves Waiting -> Active. It reports false if the request was
// already picked up, which makes a second execution a no-op.
func (r *Request[V]) activate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusWaiting {
		return false
	}
	r.status = StatusActive
	return true
}

// complete publishes the terminal status and completion time, then settles
// the future. Subscribers therefore always observe a terminal status.
func (r *Request[V]) complete(v V, err error, now int64) {
	r.mu.Lock()
	if r.status != StatusActive {
		r.mu.Unlock()
		return
	}
	if err != nil {
		r.status = StatusFailure
	} else {
		r.status = StatusSuccess
	}
	r.completedAt = now
	r.mu.Unlock()

	if err != nil {
		r.promise.Reject(err)
		return
	}
	r.promise.Resolve(v)
}

package cache

import (
	"container/heap"
	"sync"
)

// decision is the outcome of admitting one call.
type decision int

const (
	decisionHit decision = iota
	decisionBatched
	decisionActual
)

func (d decision) String() string {
	switch d {
	case decisionHit:
		return "hit"
	case decisionBatched:
		return "batched"
	default:
		return "actual"
	}
}

// shard is an independent partition of the key space with its own lock.
// Each key maps to its requests in creation order; the expiry heap holds the
// same requests ordered by validUntil.
type shard[V any] struct {
	// ---- guarded by mu ----
	mu  sync.Mutex
	m   map[string][]*Request[V]
	exp expiryHeap[V]
	len int // number of resident requests
}

func newShard[V any]() *shard[V] {
	return &shard[V]{m: make(map[string][]*Request[V])}
}

// admit runs the reuse decision for key and, when nothing is reusable,
// stores the request built by create. The whole decision happens under the
// shard lock so concurrent callers of one key never both create an entry.
func (s *shard[V]) admit(key string, now int64, opt RequestOptions, create func() *Request[V]) (*Request[V], decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.m[key]

	if !opt.Force {
		if r := freshestSuccess(list, now, opt); r != nil {
			return r, decisionHit
		}
	}

	for _, r := range list {
		if r.validAt(now) && r.Status().InFlight() {
			return r, decisionBatched
		}
	}

	r := create()
	s.m[key] = append(list, r)
	heap.Push(&s.exp, r)
	s.len++
	return r, decisionActual
}

// freshestSuccess returns the most recently created successful request that
// is still valid and young enough for opt.AllowedAge.
func freshestSuccess[V any](list []*Request[V], now int64, opt RequestOptions) *Request[V] {
	for i := len(list) - 1; i >= 0; i-- {
		r := list[i]
		if r.Status() != StatusSuccess || !r.validAt(now) || r.tooOld(opt.AllowedAge, now) {
			continue
		}
		return r
	}
	return nil
}

// appendWaiting appends every Waiting request to dst, preserving creation
// order within each key.
func (s *shard[V]) appendWaiting(dst []*Request[V]) []*Request[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, list := range s.m {
		for _, r := range list {
			if r.Status() == StatusWaiting {
				dst = append(dst, r)
			}
		}
	}
	return dst
}

// cleanup retires completed requests whose validUntil has passed and appends
// them to evicted. In-flight requests are never retired; they are pushed back
// onto the heap and looked at again by the next cleanup.
func (s *shard[V]) cleanup(now int64, evicted []*Request[V]) []*Request[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rearm []*Request[V]
	for {
		r := s.exp.peek()
		if r == nil || r.validAt(now) {
			break
		}
		heap.Pop(&s.exp)
		if !r.Status().Terminal() {
			rearm = append(rearm, r)
			continue
		}
		s.removeLocked(r)
		evicted = append(evicted, r)
	}
	for _, r := range rearm {
		heap.Push(&s.exp, r)
	}
	return evicted
}

// removeLocked drops r from its key list in place, deleting the key once empty.
func (s *shard[V]) removeLocked(r *Request[V]) {
	list := s.m[r.key]
	for i, x := range list {
		if x != r {
			continue
		}
		copy(list[i:], list[i+1:])
		list[len(list)-1] = nil
		list = list[:len(list)-1]
		break
	}
	if len(list) == 0 {
		delete(s.m, r.key)
	} else {
		s.m[r.key] = list
	}
	s.len--
}

// Len returns the number of resident requests in this shard.
func (s *shard[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

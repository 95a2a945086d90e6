package cache

// expiryHeap orders a shard's requests by validUntil so cleanup only touches
// entries that are due. Implements container/heap.Interface.
//
// All operations require the owning shard's lock.
type expiryHeap[V any] []*Request[V]

func (h expiryHeap[V]) Len() int { return len(h) }

func (h expiryHeap[V]) Less(i, j int) bool { return h[i].validUntil < h[j].validUntil }

func (h expiryHeap[V]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap[V]) Push(x any) { *h = append(*h, x.(*Request[V])) }

func (h *expiryHeap[V]) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}

// peek returns the earliest expiring request, or nil.
func (h expiryHeap[V]) peek() *Request[V] {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

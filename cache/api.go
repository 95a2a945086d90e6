package cache

import "context"

// Querier is what read call sites depend on. *Cache implements it; tests of
// call sites can substitute a fake.
type Querier[V any] interface {
	// Request returns the shared Request for (url, data) without waiting for it.
	Request(url string, data any, opt RequestOptions) (*Request[V], error)

	// Get waits for the shared Request and returns its value or error.
	Get(ctx context.Context, url string, data any, opt RequestOptions) (V, error)
}

var _ Querier[[]byte] = (*Cache[[]byte])(nil)

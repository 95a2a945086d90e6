// Package future provides a settled-once, multi-subscriber future.
//
// A Promise is the write side: it is settled exactly once, with either a value
// or an error. A Future is the read side handed out to any number of
// observers. Every observer sees the same value or the same error.
//
// Callback delivery: callbacks registered before settlement run on the
// settling goroutine, in registration order. Callbacks registered after
// settlement run synchronously on the registering goroutine. Either way each
// callback runs exactly once.
package future

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotSettled is returned by Result while the future is still pending.
	ErrNotSettled = errors.New("future: not settled")
	// ErrNilRejection replaces a nil error passed to Reject.
	ErrNilRejection = errors.New("future: rejected with nil error")
)

// Future is the observable side of a Promise. It is safe for concurrent use.
type Future[V any] struct {
	mu   sync.Mutex
	done chan struct{} // closed after val/err are published
	val  V
	err  error
	subs []func(V, error) // guarded by mu; nil once settled
}

// Promise settles a Future. Only the owner of the Promise may settle it.
type Promise[V any] struct {
	f *Future[V]
}

// New returns a pending promise.
func New[V any]() *Promise[V] {
	return &Promise[V]{f: &Future[V]{done: make(chan struct{})}}
}

// Future returns the read side of p.
func (p *Promise[V]) Future() *Future[V] { return p.f }

// Resolve settles the future with v. It reports false if already settled.
func (p *Promise[V]) Resolve(v V) bool { return p.f.settle(v, nil) }

// Reject settles the future with err. It reports false if already settled.
func (p *Promise[V]) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	var zero V
	return p.f.settle(zero, err)
}

func (f *Future[V]) settle(v V, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.val, f.err = v, err
	subs := f.subs
	f.subs = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range subs {
		fn(v, err)
	}
	return true
}

// OnAlways registers fn to run once the future settles, whatever the outcome.
func (f *Future[V]) OnAlways(fn func(V, error)) *Future[V] {
	f.mu.Lock()
	select {
	case <-f.done:
		v, err := f.val, f.err
		f.mu.Unlock()
		fn(v, err)
	default:
		f.subs = append(f.subs, fn)
		f.mu.Unlock()
	}
	return f
}

// OnSuccess registers fn to run if the future resolves.
func (f *Future[V]) OnSuccess(fn func(V)) *Future[V] {
	return f.OnAlways(func(v V, err error) {
		if err == nil {
			fn(v)
		}
	})
}

// OnFailure registers fn to run if the future is rejected.
func (f *Future[V]) OnFailure(fn func(error)) *Future[V] {
	return f.OnAlways(func(_ V, err error) {
		if err != nil {
			fn(err)
		}
	})
}

// Done returns a channel closed once the future settles.
func (f *Future[V]) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has a value or an error.
func (f *Future[V]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error without blocking.
// While pending it returns ErrNotSettled.
func (f *Future[V]) Result() (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
		var zero V
		return zero, ErrNotSettled
	}
}

// Wait blocks until the future settles or ctx is done. Cancelling ctx only
// stops this waiter; it has no effect on whoever settles the future.
func (f *Future[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Then returns a future settled with fn(v) once f resolves. A rejection of f
// is passed through unchanged and fn is not called.
func Then[V, W any](f *Future[V], fn func(V) (W, error)) *Future[W] {
	p := New[W]()
	f.OnAlways(func(v V, err error) {
		if err != nil {
			p.Reject(err)
			return
		}
		w, err := fn(v)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(w)
	})
	return p.Future()
}

// Package future is a small typed future over a goroutine.
//
// A Future runs its function on a child context that Cancel aborts. Waiting on
// a future with a context never cancels the future itself: a caller that gives
// up can come back later and pick up the same result.
package future

import (
	"context"
	"time"
)

type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	val    T
	err    error
}

// Go starts fn on its own goroutine. fn receives a context derived from ctx
// that is cancelled by Cancel or once fn returns.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	cctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		v, err := fn(cctx)
		f.val, f.err = v, err
		close(f.done)
	}()
	return f
}

// Resolved returns a future that is already complete.
func Resolved[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), cancel: func() {}, val: v, err: err}
	close(f.done)
	return f
}

// Await blocks until the future completes or ctx is done. In the latter case
// it returns ctx.Err() and the future keeps running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait is Await bounded by d. A non-positive d only checks for completion.
func (f *Future[T]) Wait(ctx context.Context, d time.Duration) (T, error) {
	if d <= 0 {
		select {
		case <-f.done:
			return f.val, f.err
		default:
			var zero T
			return zero, context.DeadlineExceeded
		}
	}
	wctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return f.Await(wctx)
}

// Cancel aborts the context passed to fn. The future still completes, with
// whatever fn returns.
func (f *Future[T]) Cancel() { f.cancel() }

func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Ready reports whether the future has completed.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

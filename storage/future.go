package storage

import (
	"context"
	"sync"
)

// Future is the handle of an operation running on its own goroutine. It
// completes exactly once.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// Go runs fn and returns its Future.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		v, err := fn()
		f.complete(v, err)
	}()
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed when the operation finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await waits for the result or for ctx. Giving up on ctx does not cancel
// the operation itself.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the operation finished.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

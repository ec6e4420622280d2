package async

import (
	"context"
	"fmt"
)

// Future is the eventual result of a function running in its own goroutine.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Go runs fn in a new goroutine and returns its Future. A panic in fn
// completes the Future with an error wrapping ErrPanicked. When ctx is
// already done, fn is not called and the Future holds ctx.Err().
func Go[U any](ctx context.Context, fn func(context.Context) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero U
				f.result, f.err = zero, fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()

	return f
}

// Done is closed once the function has returned.
func (f *Future[U]) Done() <-chan struct{} { return f.done }

// Await blocks until the function returns or ctx is done. Giving up on
// the wait does not stop the function.
func (f *Future[U]) Await(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// Completed reports whether the function has returned.
func (f *Future[U]) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

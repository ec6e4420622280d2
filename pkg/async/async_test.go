package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/checkoutkit/pkg/async"
)

func TestGo(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()
		f := async.Go(context.Background(), func(context.Context) (int, error) { return 42, nil })

		got, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, got)

		assert.True(t, f.Completed())
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		f := async.Go(context.Background(), func(context.Context) (string, error) { return "", boom })

		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("recovers panic", func(t *testing.T) {
		t.Parallel()
		f := async.Go(context.Background(), func(context.Context) (int, error) { panic("kaboom") })

		got, err := f.Await(context.Background())
		assert.ErrorIs(t, err, async.ErrPanicked)
		assert.Contains(t, err.Error(), "kaboom")
		assert.Zero(t, got)
	})

	t.Run("skips function when context is done", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		f := async.Go(ctx, func(context.Context) (int, error) {
			called = true
			return 1, nil
		})
		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("function sees cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan struct{})
		f := async.Go(ctx, func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		})
		<-started
		cancel()

		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFuture_AwaitGivesUp(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := async.Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.False(t, f.Completed(), "still running")

	close(release)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "future did not complete")
	}
	got, err := f.Await(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, got)
}

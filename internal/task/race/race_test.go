package race

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWorkWins(t *testing.T) {
	t.Parallel()
	v, err := Run(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunReturnsWorkError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("boom")
	err := Do(context.Background(), time.Second, func(ctx context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.False(t, IsCancelled(err))
}

func TestRunTimeoutDoesNotWaitForWork(t *testing.T) {
	t.Parallel()
	var sawCancel atomic.Bool
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := Do(context.Background(), 50*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		// Ignore cancellation: keep running until the test ends.
		<-release
		return nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second)
	assert.Eventually(t, sawCancel.Load, time.Second, 5*time.Millisecond)
}

func TestRunParentCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, 0, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRecoversPanic(t *testing.T) {
	t.Parallel()
	err := Do(context.Background(), time.Second, func(ctx context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, Describe(err), "panic")
}

func TestRunNilWork(t *testing.T) {
	t.Parallel()
	require.Error(t, Do(context.Background(), time.Second, nil))
}

func TestCancelledMatchesStdlibErrorsIs(t *testing.T) {
	t.Parallel()
	err := Do(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrCancelled))
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.False(t, stderrors.Is(err, context.Canceled))
	assert.Equal(t, "timed out after 10ms", err.Error())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Do(ctx, time.Second, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	assert.True(t, stderrors.Is(err, ErrCancelled))
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.False(t, stderrors.Is(err, context.DeadlineExceeded))
}

func TestPanicMatchesStdlibErrorsIs(t *testing.T) {
	t.Parallel()
	err := Do(context.Background(), time.Second, func(ctx context.Context) error {
		panic("kaboom")
	})
	assert.True(t, stderrors.Is(err, ErrPanic))
	assert.False(t, stderrors.Is(err, ErrCancelled))
	assert.Equal(t, "panic: kaboom", err.Error())
	assert.NotEmpty(t, errors.GetAllDetails(err))
}

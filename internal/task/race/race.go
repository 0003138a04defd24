// Package race runs a unit of work against a timeout and reports whichever
// finishes first.
//
// Cancellation is advisory: on timeout the work's context is cancelled and the
// caller gets ErrCancelled immediately, but a work function that ignores its
// context keeps running detached until it returns on its own.
package race

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrCancelled is returned when the timeout (or the parent context) wins the race.
var ErrCancelled = errors.New("operation cancelled")

// ErrPanic marks errors produced from a recovered panic in the work function.
var ErrPanic = errors.New("work panicked")

// cancelledError unwraps to ErrCancelled and to the context error behind it,
// so both the standard errors.Is and cockroachdb's match either sentinel.
type cancelledError struct {
	msg   string
	cause error
}

func (e *cancelledError) Error() string   { return e.msg }
func (e *cancelledError) Unwrap() []error { return []error{ErrCancelled, e.cause} }

type panicError struct{ val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.val) }
func (e *panicError) Unwrap() error { return ErrPanic }

type outcome[T any] struct {
	val T
	err error
}

// Run executes work in its own goroutine and waits for the first of:
// work returning, timeout elapsing, ctx being done.
//
// A timeout <= 0 disables the timer.
func Run[T any](ctx context.Context, timeout time.Duration, work func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if work == nil {
		return zero, errors.New("race: nil work")
	}

	workCtx, cancel := context.WithCancel(ctx)
	// Buffered so the work goroutine never blocks if it loses.
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := errors.WithDetail(&panicError{val: r}, string(debug.Stack()))
				done <- outcome[T]{err: err}
			}
		}()
		v, err := work(workCtx)
		done <- outcome[T]{val: v, err: err}
	}()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		tmr := time.NewTimer(timeout)
		defer tmr.Stop()
		timeoutC = tmr.C
	}

	select {
	case o := <-done:
		cancel()
		return o.val, o.err
	case <-timeoutC:
		cancel()
		return zero, &cancelledError{
			msg:   fmt.Sprintf("timed out after %s", timeout),
			cause: context.DeadlineExceeded,
		}
	case <-ctx.Done():
		cancel()
		return zero, &cancelledError{msg: "work aborted: " + ctx.Err().Error(), cause: ctx.Err()}
	}
}

// Do is Run for work that returns only an error.
func Do(ctx context.Context, timeout time.Duration, work func(ctx context.Context) error) error {
	if work == nil {
		return errors.New("race: nil work")
	}
	_, err := Run(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	})
	return err
}

// IsCancelled reports whether err came from the timeout or parent side of a race.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Describe renders a short reason string for logs and history rows.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return fmt.Sprintf("cancelled: %v", err)
	case errors.Is(err, ErrPanic):
		return fmt.Sprintf("panic: %v", err)
	default:
		return err.Error()
	}
}

package job

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAlreadyScheduled is returned when a single-shot job is scheduled twice.
	ErrAlreadyScheduled = errors.New("job already scheduled")
	// ErrDisposed is returned when scheduling a job after Dispose.
	ErrDisposed = errors.New("job disposed")
	// ErrHookPanic marks a panic raised by a lifecycle callback.
	ErrHookPanic = errors.New("lifecycle hook panicked")
	// ErrTimerStopped is returned when re-arming a stopped timer.
	ErrTimerStopped = errors.New("timer stopped")
	// ErrNoCallback is returned when scheduling a job without a callback.
	ErrNoCallback = errors.New("job has no callback")
)

type hookPanicError struct {
	hook string
	val  any
}

func (e *hookPanicError) Error() string { return fmt.Sprintf("%s hook panic: %v", e.hook, e.val) }
func (e *hookPanicError) Unwrap() error { return ErrHookPanic }

func hookPanic(hook string, r any) error {
	return errors.WithDetail(&hookPanicError{hook: hook, val: r}, string(debug.Stack()))
}

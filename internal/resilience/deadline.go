// Package resilience bounds and guards calls to unreliable collaborators:
// wall-clock deadlines, a circuit breaker for the oracle, and retry with
// backoff for notification delivery.
package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
)

// ErrTimedOut is returned by RunWithDeadline when the deadline elapses before
// the unit of work completes.
var ErrTimedOut = eris.New("deadline exceeded")

// PanicError carries a panic recovered from a unit of work.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unit of work panicked: %v", e.Value)
}

type outcome[T any] struct {
	val T
	err error
}

// RunWithDeadline runs fn on its own goroutine and waits at most d for it.
//
// The returned error is nil on success, ErrTimedOut when d elapses first, the
// parent context's error when ctx is done first, or fn's own error (a
// *PanicError if fn panicked). fn receives a context that is cancelled as
// soon as RunWithDeadline returns, so work that honours its context stops
// early; work that does not is abandoned and its result discarded. Each call
// runs fn again.
func RunWithDeadline[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return zero, ErrTimedOut
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned goroutine can always deliver and exit.
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(workCtx)
		done <- outcome[T]{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			return zero, o.err
		}
		return o.val, nil
	case <-timer.C:
		return zero, ErrTimedOut
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a bounded wait elapses before its operation
// settles.
var ErrTimeout = errors.New("bounded wait elapsed")

// boundedWait races op against a timer. op runs on its own goroutine with a
// context that is cancelled when the wait ends; a result that arrives after
// the timer fired lands in a buffered channel nobody reads and is dropped.
// A panic inside op is returned as an error.
func boundedWait[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := op(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}

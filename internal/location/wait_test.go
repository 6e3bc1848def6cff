package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedWait_ReturnsResult(t *testing.T) {
	v, err := boundedWait(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = boundedWait(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestBoundedWait_TimeoutCancelsAndDropsLateResult(t *testing.T) {
	cancelled := make(chan struct{})
	settled := make(chan struct{})

	start := time.Now()
	v, err := boundedWait(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		time.Sleep(10 * time.Millisecond)
		defer close(settled)
		return "late", nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, v)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled")
	}
	// the late send must not block the abandoned goroutine
	select {
	case <-settled:
	case <-time.After(time.Second):
		t.Fatal("late result blocked")
	}
}

func TestBoundedWait_RecoversPanic(t *testing.T) {
	_, err := boundedWait(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("device driver exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device driver exploded")
}

func TestBoundedWait_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := boundedWait(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

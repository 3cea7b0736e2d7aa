package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3}, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	failure := errors.New("network down")
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3}, func() error {
		calls++
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
}

func TestDoRecoversMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3}, func() error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnTerminalError(t *testing.T) {
	forbidden := errors.New("forbidden")
	calls := 0
	policy := Policy{
		Attempts: 3,
		Terminal: func(err error) bool { return errors.Is(err, forbidden) },
	}
	err := Do(context.Background(), policy, func() error {
		calls++
		return forbidden
	})
	require.ErrorIs(t, err, forbidden)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	policy := Policy{Attempts: 3, RetryDelay: 50 * time.Millisecond}
	err := Do(ctx, policy, func() error {
		calls++
		return errors.New("timeout")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(300*time.Millisecond, 1200*time.Millisecond)
		assert.GreaterOrEqual(t, d, 300*time.Millisecond)
		assert.Less(t, d, 1200*time.Millisecond)
	}
	assert.Equal(t, time.Second, jitter(time.Second, time.Second))
}

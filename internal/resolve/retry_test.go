package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Do(t *testing.T) {
	rec := &sleepRecorder{}
	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Second, Sleep: rec.Sleep}

	var seen []int
	n, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, []time.Duration{time.Second}, rec.sleeps)
}

func TestRetryPolicy_ReturnsLastError(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, Sleep: (&sleepRecorder{}).Sleep}
	n, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		return errors.New("fail " + string(rune('0'+attempt)))
	})
	assert.Equal(t, 2, n)
	assert.EqualError(t, err, "fail 2")
}

func TestRetryPolicy_ZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	n, err := RetryPolicy{}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("x")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	n, err := p.Do(ctx, func(context.Context, int) error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := DefaultRetryPolicy().Do(ctx, func(context.Context, int) error {
		require.FailNow(t, "不应执行")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

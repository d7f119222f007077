package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("temporary"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(3), func(_ context.Context) (int, error) {
		calls++
		return 7, NewTransientError(errors.New("always fails"), 500)
	})
	require.Error(t, err)
	assert.Zero(t, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_NonTransientStopsImmediately(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(5), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	calls := 0
	cfg := fastConfig(4)
	cfg.ShouldRetry = func(error) bool { return true }
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("anything")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }
	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("x"), 502)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := fastConfig(10)
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second
	cfg.OnRetry = func(int, error) { cancel() }

	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("temporary"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
	}
	assert.Equal(t, 100*time.Millisecond, Backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, Backoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, Backoff(2, cfg))
	assert.Equal(t, time.Second, Backoff(10, cfg))
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
	}
	for range 50 {
		d := Backoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestFromMillis(t *testing.T) {
	cfg := FromMillis(5, 200, 0)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("youtube", "videos.list")
	assert.NotPanics(t, func() { fn(1, errors.New("x")) })
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortWait(t *testing.T, l *Limiter, endpoint string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, endpoint)
}

func TestNewLimiter_RejectsInvalidSettings(t *testing.T) {
	_, err := NewLimiter(0, 1)
	assert.Error(t, err)

	_, err = NewLimiter(1, 0)
	assert.Error(t, err)
}

func TestLimiter_BurstPerEndpoint(t *testing.T) {
	limiter, err := NewLimiter(1.0, 2)
	require.NoError(t, err)

	require.NoError(t, shortWait(t, limiter, "/pnl"))
	require.NoError(t, shortWait(t, limiter, "/pnl"))
	assert.Error(t, shortWait(t, limiter, "/pnl"), "third request should exceed the burst")

	// Other endpoints keep their own bucket
	assert.NoError(t, shortWait(t, limiter, "/spread_metrics"))
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter, err := NewLimiter(0.1, 1)
	require.NoError(t, err)
	require.NoError(t, limiter.Wait(context.Background(), "/pnl"))

	start := time.Now()
	err = shortWait(t, limiter, "/pnl")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_Tokens(t *testing.T) {
	limiter, err := NewLimiter(5.0, 3)
	require.NoError(t, err)

	require.NoError(t, limiter.Wait(context.Background(), "/sweep_summary"))
	assert.Less(t, limiter.Tokens("/sweep_summary"), 3.0)
	assert.InDelta(t, 3.0, limiter.Tokens("/seasonal_stats"), 0.01)
}

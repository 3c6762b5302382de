package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "analytics", ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (any, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", b.State())

	called := false
	_, err := b.Execute(func() (any, error) {
		called = true
		return nil, nil
	})
	assert.True(t, IsOpen(err), "open breaker should refuse the call, got %v", err)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := New(Config{Name: "analytics", ConsecutiveFailures: 2})
	boom := errors.New("timeout")

	_, _ = b.Execute(func() (any, error) { return nil, boom })
	_, err := b.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	_, _ = b.Execute(func() (any, error) { return nil, boom })

	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := New(Config{Name: "analytics", ConsecutiveFailures: 1, OpenTimeout: 20 * time.Millisecond})

	_, _ = b.Execute(func() (any, error) { return nil, errors.New("down") })
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "half-open", b.State())

	v, err := b.Execute(func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, "closed", b.State())
}

func TestIsOpen_IgnoresOrdinaryErrors(t *testing.T) {
	assert.False(t, IsOpen(errors.New("HTTP 500")))
	assert.False(t, IsOpen(nil))
}

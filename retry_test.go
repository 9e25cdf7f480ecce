package loom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultBackoff(t *testing.T) {
	p := DefaultRetryPolicy()

	require.Equal(t, time.Duration(0), p.backoff(1))
	require.Equal(t, time.Second, p.backoff(2))
	require.Equal(t, 2*time.Second, p.backoff(3))
	require.Equal(t, 4*time.Second, p.backoff(4))
	require.Equal(t, 8*time.Second, p.backoff(5))

	// Capped at MaxInterval.
	require.Equal(t, 30*time.Second, p.backoff(8))
	require.Equal(t, 30*time.Second, p.backoff(20))
}

func TestZeroPolicyDisablesWaiting(t *testing.T) {
	var p RetryPolicy

	require.Equal(t, time.Duration(0), p.backoff(2))
	require.Equal(t, time.Duration(0), p.backoff(5))
}

func TestBackoffFactorFloor(t *testing.T) {
	p := RetryPolicy{InitialInterval: time.Second, BackoffFactor: 0.5}

	require.Equal(t, time.Second, p.backoff(2))
	require.Equal(t, time.Second, p.backoff(3))
}

package loom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	require.Equal(t, "embeddings-lifecycle", Topic("embeddings"))
	require.Equal(t, "code_review-lifecycle", Topic("code review"))
	require.Equal(t, "-lifecycle", Topic(""))
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "Running", StatusRunning.String())
	require.Equal(t, "Completed", StatusCompleted.String())
	require.Equal(t, "Failed", StatusFailed.String())
	require.Equal(t, "Unknown", StatusUnknown.String())
	require.Equal(t, "Unknown", Status(99).String())
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusUnknown.Terminal())
	require.False(t, StatusRunning.Terminal())
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
}

func TestStatusValid(t *testing.T) {
	require.False(t, StatusUnknown.Valid())
	require.True(t, StatusRunning.Valid())
	require.True(t, StatusCompleted.Valid())
	require.True(t, StatusFailed.Valid())
	require.False(t, Status(99).Valid())
}

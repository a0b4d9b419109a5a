package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCooldownDeniesWithinWindow(t *testing.T) {
	c := NewCooldown(time.Hour)

	require.True(t, c.Allow("alice"))
	require.False(t, c.Allow("alice"))
	require.False(t, c.Allow("alice"))

	// Independent actors do not share windows.
	require.True(t, c.Allow("bob"))
}

func TestCooldownAllowsAfterWindow(t *testing.T) {
	c := NewCooldown(20 * time.Millisecond)

	require.True(t, c.Allow("alice"))
	require.False(t, c.Allow("alice"))

	time.Sleep(40 * time.Millisecond)
	require.True(t, c.Allow("alice"))
}

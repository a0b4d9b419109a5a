package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	g := New(2)

	res := Run(g, time.Second, "ok", func() (int, error) {
		return 7, nil
	})

	require.Equal(t, Success, res.Outcome)
	require.True(t, res.Succeeded())
	require.Equal(t, 7, res.Value)
	require.NoError(t, res.Err)
}

func TestRunFailurePreservesError(t *testing.T) {
	g := New(2)
	sentinel := errors.New("boom")

	res := Run(g, time.Second, "fail", func() (int, error) {
		return 0, sentinel
	})

	require.Equal(t, Failure, res.Outcome)
	require.ErrorIs(t, res.Err, sentinel)
}

func TestRunTimeoutIsUnknown(t *testing.T) {
	g := New(2)
	release := make(chan struct{})
	defer close(release)

	res := Run(g, 20*time.Millisecond, "hang", func() (int, error) {
		<-release
		return 1, nil
	})

	require.Equal(t, Unknown, res.Outcome)
	require.False(t, res.Succeeded())
	require.Error(t, res.Err)
}

func TestRunRecoversPanic(t *testing.T) {
	g := New(2)

	res := Run(g, time.Second, "panic", func() (int, error) {
		panic("kaboom")
	})

	require.Equal(t, Failure, res.Outcome)
	require.ErrorContains(t, res.Err, "kaboom")
}

func TestRunSaturatedPoolTimesOut(t *testing.T) {
	g := New(1)
	release := make(chan struct{})
	defer close(release)

	// Occupy the only worker with an abandoned call.
	_ = Run(g, 10*time.Millisecond, "hog", func() (int, error) {
		<-release
		return 0, nil
	})

	res := Run(g, 20*time.Millisecond, "starved", func() (int, error) {
		return 1, nil
	})
	require.Equal(t, Unknown, res.Outcome)
}

func TestAbandonedWorkerReleasesSlot(t *testing.T) {
	g := New(1)
	release := make(chan struct{})

	_ = Run(g, 10*time.Millisecond, "hog", func() (int, error) {
		<-release
		return 0, nil
	})

	// Once the abandoned call completes, the pool drains and serves again.
	close(release)

	require.Eventually(t, func() bool {
		res := Run(g, 50*time.Millisecond, "after", func() (int, error) { return 1, nil })
		return res.Succeeded()
	}, time.Second, 10*time.Millisecond)
}

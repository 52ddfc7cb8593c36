package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      0,
		"0":     0,
		"250ms": 250 * time.Millisecond,
		"15m":   15 * time.Minute,
		"1h":    time.Hour,
		"1d":    24 * time.Hour,
		"2w":    14 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"x", "-1s", "0d", "d", "3y"} {
		_, ok := ParseIntervalDuration(bad)
		assert.False(t, ok, bad)
	}
}

func TestRunBackToBackStopsWhenTaskDeclines(t *testing.T) {
	s, err := NewRoundScheduler(Options{})
	require.NoError(t, err)
	s.sleep = func(context.Context, time.Duration) error {
		t.Fatal("back-to-back rounds must not sleep")
		return nil
	}
	calls := 0
	err = s.Run(context.Background(), func(context.Context) bool {
		calls++
		return calls < 5
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestRunStopsOnCancellation(t *testing.T) {
	s, err := NewRoundScheduler(Options{Interval: time.Hour})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		cancel()
		return ctx.Err()
	}
	calls := 0
	err = s.Run(ctx, func(context.Context) bool {
		calls++
		return true
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []time.Duration{time.Hour}, waits)
}

func TestRunDoesNotStartAfterCancel(t *testing.T) {
	s, err := NewRoundScheduler(Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Run(ctx, func(context.Context) bool {
		t.Fatal("task must not run")
		return false
	})
	assert.Error(t, err)
}

func TestAlignedWait(t *testing.T) {
	s, err := NewRoundScheduler(Options{Interval: time.Minute, Align: true, Offset: 5 * time.Second})
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 10, 0, 40, 0, time.UTC)
	assert.Equal(t, 25*time.Second, s.nextWait(now))
}

func TestCronWait(t *testing.T) {
	s, err := NewRoundScheduler(Options{Cron: "*/5 * * * *", Interval: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "cron", s.mode())
	now := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Minute, s.nextWait(now))
}

func TestNewRoundSchedulerValidates(t *testing.T) {
	_, err := NewRoundScheduler(Options{Cron: "not a cron"})
	assert.Error(t, err)
	_, err = NewRoundScheduler(Options{Interval: -time.Second})
	assert.Error(t, err)

	s, err := NewRoundScheduler(Options{})
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background(), nil))
}

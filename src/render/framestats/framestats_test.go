package framestats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Duration }

func (c *fakeClock) now() time.Duration { return c.t }

func newFake() (*Timer, *fakeClock) {
	c := &fakeClock{t: time.Second}
	return &Timer{now: c.now}, c
}

func TestTimer(t *testing.T) {
	timer, clock := newFake()
	require.Zero(t, timer.Mark(true))

	for _, step := range []struct {
		advance   time.Duration
		presented bool
		want      time.Duration
	}{
		{16 * time.Millisecond, true, 16 * time.Millisecond},
		{10 * time.Millisecond, false, 0},
		// the skipped cycle is folded into the next frame
		{10 * time.Millisecond, true, 20 * time.Millisecond},
		{8 * time.Millisecond, true, 8 * time.Millisecond},
	} {
		clock.t += step.advance
		require.Equal(t, step.want, timer.Mark(step.presented))
	}

	s := timer.Stats()
	require.Equal(t, 3, s.Frames)
	require.Equal(t, 1, s.Skipped)
	require.Equal(t, 44*time.Millisecond, s.Total)
	require.Equal(t, 8*time.Millisecond, s.Min)
	require.Equal(t, 20*time.Millisecond, s.Max)
	require.Equal(t, 44*time.Millisecond/3, s.Average())
	require.InDelta(t, 3/0.044, s.FPS(), 1e-9)
}

func TestTimerReset(t *testing.T) {
	timer, clock := newFake()
	timer.Mark(true)
	clock.t += 5 * time.Millisecond
	timer.Mark(true)

	require.Equal(t, 1, timer.Reset().Frames)
	require.Equal(t, Stats{}, timer.Stats())

	clock.t += 7 * time.Millisecond
	require.Equal(t, 7*time.Millisecond, timer.Elapsed())
	require.Equal(t, 7*time.Millisecond, timer.Mark(true))
	require.Equal(t, 7*time.Millisecond, timer.Stats().Min)
}

func TestEmptyStats(t *testing.T) {
	var s Stats
	require.Zero(t, s.Average())
	require.Zero(t, s.FPS())
	require.Zero(t, New().Elapsed())
}

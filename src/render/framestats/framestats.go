// Package framestats measures frame pacing with the high resolution clock.
package framestats

import (
	"time"

	"github.com/loov/hrtime"
)

// Stats summarizes the frames seen since the last Reset.
type Stats struct {
	Frames  int
	Skipped int
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
}

func (s Stats) Average() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Frames)
}

// FPS is presented frames per second of measured time.
func (s Stats) FPS() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Total.Seconds()
}

// Timer accumulates the time between consecutive Mark calls.
type Timer struct {
	now   func() time.Duration
	last  time.Duration
	begun bool
	stats Stats
}

func New() *Timer {
	return &Timer{now: hrtime.Now}
}

// Mark ends the current frame. presented is false for cycles that were
// skipped or declined; their time still counts towards the next frame.
func (t *Timer) Mark(presented bool) time.Duration {
	now := t.now()
	if !t.begun {
		t.last, t.begun = now, true
		if !presented {
			t.stats.Skipped++
		}
		return 0
	}
	if !presented {
		t.stats.Skipped++
		return 0
	}
	d := now - t.last
	t.last = now

	s := &t.stats
	if s.Frames == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Frames++
	s.Total += d
	return d
}

// Elapsed is the time since the last presented frame.
func (t *Timer) Elapsed() time.Duration {
	if !t.begun {
		return 0
	}
	return t.now() - t.last
}

func (t *Timer) Stats() Stats { return t.stats }

// Reset clears the accumulated stats; the next frame is still timed from
// the last mark.
func (t *Timer) Reset() Stats {
	s := t.stats
	t.stats = Stats{}
	return s
}

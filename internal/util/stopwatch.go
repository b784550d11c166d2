package util

import "time"

// Clock returns the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

// Stopwatch measures how long a pipeline run or batch takes.
type Stopwatch struct {
	now   Clock
	start time.Time
}

// StartStopwatch starts a stopwatch on the wall clock.
func StartStopwatch() Stopwatch {
	return StartStopwatchWith(time.Now)
}

// StartStopwatchWith starts a stopwatch on the given clock.
func StartStopwatchWith(now Clock) Stopwatch {
	if now == nil {
		now = time.Now
	}
	return Stopwatch{now: now, start: now()}
}

// Elapsed returns the time since start, or zero for an unstarted stopwatch.
func (s Stopwatch) Elapsed() time.Duration {
	if s.start.IsZero() || s.now == nil {
		return 0
	}
	d := s.now().Sub(s.start)
	if d < 0 {
		return 0
	}
	return d
}

// ElapsedMs is Elapsed in whole milliseconds.
func (s Stopwatch) ElapsedMs() int64 {
	return s.Elapsed().Milliseconds()
}

package session

import "time"

// Clock supplies the current time. Durations are computed from values it
// returns, so the real implementation keeps Go's monotonic reading.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

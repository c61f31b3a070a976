package reassemble

import (
	"sync"
	"time"
)

// throttle suppresses repeated warnings using a token-bucket-like burst
// discipline (spec.md §4.2 "Warning throttle"): after burstThreshold
// warnings within burstWindow, further warnings in the same window are
// silently counted; the next window starts when the timer elapses.
//
// Grounded on the shape of a Redis token-bucket rate limiter, reimplemented
// in-process since this is per-goroutine log suppression state rather than
// shared, cross-process rate limiting.
type throttle struct {
	mu sync.Mutex

	burstThreshold int
	burstWindow    time.Duration

	windowStart time.Time
	count       int
	suppressed  int
}

func newThrottle(burstThreshold int, burstWindow time.Duration) *throttle {
	return &throttle{
		burstThreshold: burstThreshold,
		burstWindow:    burstWindow,
	}
}

// allow reports whether this warning should actually be logged, and, for
// the first warning of a new burst window, the number of warnings
// suppressed during the previous window (so the caller can log "N further
// warnings suppressed"); it is 0 otherwise.
func (m *throttle) allow(now time.Time) (log bool, suppressedSinceLast int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windowStart.IsZero() || now.Sub(m.windowStart) >= m.burstWindow {
		m.windowStart = now
		m.count = 0
		suppressedSinceLast = m.suppressed
		m.suppressed = 0
	}

	m.count++
	if m.count <= m.burstThreshold {
		return true, suppressedSinceLast
	}

	m.suppressed++
	return false, 0
}

package board

import "time"

// DefaultCursorInterval is the minimum spacing between cursor broadcasts
// for one connection, roughly one rendering frame.
const DefaultCursorInterval = 16 * time.Millisecond

// cursorThrottle rate-limits cursor broadcasts for a single connection.
// It is not self-locking; callers hold the room lock.
type cursorThrottle struct {
	last time.Time
}

// allow reports whether a broadcast may happen at now and, if so, starts a
// new throttle window. Positions rejected here are dropped, not queued.
func (t *cursorThrottle) allow(now time.Time, interval time.Duration) bool {
	if now.Sub(t.last) < interval {
		return false
	}
	t.last = now
	return true
}

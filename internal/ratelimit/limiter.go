// Package ratelimit gates message admission per identity.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the span over which the burst limit is counted unless
// the caller configures another one.
const DefaultWindow = time.Minute

// Limiter enforces a cooldown between consecutive messages and a cap on
// messages per window, independently for each identity. State lives in
// memory only; a restart clears all counters.
type Limiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	burst    int
	window   time.Duration
	now      func() time.Time
	states   map[string]*state
}

type state struct {
	last    time.Time
	accepts []time.Time
}

// NewLimiter creates a limiter. The clock is injectable for tests; pass nil
// for time.Now. Non-positive cooldown or burst disables that check; a
// non-positive window falls back to DefaultWindow.
func NewLimiter(cooldown time.Duration, burst int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		cooldown: cooldown,
		burst:    burst,
		window:   window,
		now:      now,
		states:   make(map[string]*state),
	}
}

// Check admits or rejects one message for the identity. A rejected check
// consumes nothing; an admitted one counts against both limits.
func (l *Limiter) Check(identity string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st, ok := l.states[identity]
	if !ok {
		st = &state{}
		l.states[identity] = st
	}

	// Drop accepts that slid out of the window.
	cutoff := now.Add(-l.window)
	kept := st.accepts[:0]
	for _, t := range st.accepts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.accepts = kept

	if l.cooldown > 0 && !st.last.IsZero() {
		if wait := l.cooldown - now.Sub(st.last); wait > 0 {
			return false, fmt.Sprintf("sending too fast, wait %s", wait.Round(time.Second))
		}
	}
	if l.burst > 0 && len(st.accepts) >= l.burst {
		return false, fmt.Sprintf("limit of %d messages per %s reached", l.burst, l.window)
	}

	st.last = now
	st.accepts = append(st.accepts, now)
	return true, ""
}

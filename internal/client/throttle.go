package client

import (
	"sync"
	"time"
)

// Gate collapses rapid repeated user triggers into at most one execution
// per cooldown window. It is a leading-edge throttle: the first trigger on
// a channel runs immediately and later triggers are dropped until the
// window elapses.
//
// Each user action gets its own channel so independent actions never
// interfere. The gate is UI smoothing, not a correctness mechanism; the
// session's in-flight guard provides at-most-once pairing on its own.
type Gate struct {
	now func() time.Time

	mu        sync.Mutex
	busyUntil map[string]time.Time
}

// NewGate constructs a Gate. A nil clock uses time.Now.
func NewGate(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		now:       now,
		busyUntil: make(map[string]time.Time),
	}
}

// Guard runs action immediately unless channel is inside its cooldown
// window, in which case the call is a no-op. It reports whether the action
// ran.
func (g *Gate) Guard(channel string, window time.Duration, action func()) bool {
	now := g.now()

	g.mu.Lock()
	if until, ok := g.busyUntil[channel]; ok && now.Before(until) {
		g.mu.Unlock()
		return false
	}
	g.busyUntil[channel] = now.Add(window)
	g.mu.Unlock()

	action()
	return true
}

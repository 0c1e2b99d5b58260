package relay

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Rendezvous is the two-party fanout primitive: once a pair request
// matches, both sessions join one rendezvous and content flows between
// them until either side disconnects.
//
// Concurrency guarantees:
// - Join/Dispose are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Session.Send is never closed here.
type Rendezvous struct {
	log *slog.Logger
	ID  uuid.UUID

	mu      sync.Mutex
	members map[string]*Session
}

// NewRendezvous constructs an empty rendezvous.
func NewRendezvous(log *slog.Logger) *Rendezvous {
	return &Rendezvous{
		log:     log,
		ID:      uuid.New(),
		members: make(map[string]*Session),
	}
}

// Join adds a session and back-links it to this rendezvous.
func (rv *Rendezvous) Join(s *Session) {
	if rv == nil || s == nil {
		return
	}

	rv.mu.Lock()
	rv.members[s.ID] = s
	n := len(rv.members)
	rv.mu.Unlock()

	s.setRendezvous(rv)
	rv.log.Info("rendezvous.join", "rendezvous_id", rv.ID, "session_id", s.ID, "streams", n)
}

// Broadcast fanouts a frame to all members except the one named by
// exceptID (the originator already has its own copy).
// Non-blocking: slow or closing members are skipped.
func (rv *Rendezvous) Broadcast(frame []byte, exceptID string) {
	if rv == nil {
		return
	}

	rv.mu.Lock()
	defer rv.mu.Unlock()

	for id, m := range rv.members {
		if id == exceptID || m == nil {
			continue
		}
		if !m.enqueue(frame) {
			rv.log.Warn("rendezvous.broadcast.drop", "rendezvous_id", rv.ID, "session_id", id)
		}
	}
}

// Dispose removes the leaving session and dissolves the rendezvous: a
// two-party channel cannot outlive either party. It returns the remaining
// members so the gateway can notify and close them.
func (rv *Rendezvous) Dispose(leaving *Session) []*Session {
	if rv == nil {
		return nil
	}

	rv.mu.Lock()
	if leaving != nil {
		delete(rv.members, leaving.ID)
		leaving.setRendezvous(nil)
	}
	rest := make([]*Session, 0, len(rv.members))
	for _, m := range rv.members {
		if m != nil {
			rest = append(rest, m)
		}
	}
	rv.members = make(map[string]*Session)
	rv.mu.Unlock()

	for _, m := range rest {
		m.setRendezvous(nil)
	}

	rv.log.Info("rendezvous.dispose", "rendezvous_id", rv.ID, "survivors", len(rest))
	return rest
}

// Size reports current membership.
func (rv *Rendezvous) Size() int {
	rv.mu.Lock()
	defer rv.mu.Unlock()
	return len(rv.members)
}

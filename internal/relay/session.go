package relay

import (
	"sync"
)

// Session represents one connected websocket client on the relay side.
//
// Design notes:
// - Send is intentionally NOT closed to avoid panics from concurrent
//   rendezvous broadcasters.
// - done signals goroutines to stop.
// - Close is idempotent.
type Session struct {
	ID    string
	Token string
	Send  chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu sync.Mutex
	rv *Rendezvous
}

// NewSession constructs a Session with a bounded send queue.
func NewSession(id, token string, sendQueueSize int) *Session {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Session{
		ID:    id,
		Token: token,
		Send:  make(chan []byte, sendQueueSize),
		done:  make(chan struct{}),
	}
}

// Done returns a channel that is closed when the session is shutting down.
func (s *Session) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Close signals the session goroutines to stop (idempotent).
// It does NOT close Send to keep broadcast safe under concurrency.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Rendezvous returns the rendezvous this session is paired into, if any.
func (s *Session) Rendezvous() *Rendezvous {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rv
}

func (s *Session) setRendezvous(rv *Rendezvous) {
	s.mu.Lock()
	s.rv = rv
	s.mu.Unlock()
}

// enqueue offers a frame to the session's send queue without blocking.
// Frames for sessions that are shutting down or backed up are dropped.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.Done():
		return false
	default:
	}
	select {
	case s.Send <- frame:
		return true
	default:
		return false
	}
}

package relay

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// ErrTokenSpace is returned when token generation keeps colliding with
// live sessions. With a 36^6 space this means something is badly wrong.
var ErrTokenSpace = errors.New("relay: failed to generate an unassigned token")

// Registry owns the in-memory token -> session map. Tokens are the sole
// pairing handle; nothing here is ever persisted.
type Registry struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry constructs a Registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// IssueToken generates a currently-unassigned token and reserves it.
// The caller registers the session under it via Register.
func (r *Registry) IssueToken() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < tokenIssueAttempts; i++ {
		token, err := NewToken()
		if err != nil {
			return "", err
		}
		if _, taken := r.sessions[token]; !taken {
			// Reserve with a nil slot until Register fills it.
			r.sessions[token] = nil
			return token, nil
		}
	}
	return "", ErrTokenSpace
}

// Register binds a session to its issued token.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.Token] = s
	r.mu.Unlock()
	r.log.Info("registry.session.register", "session_id", s.ID, "token", s.Token)
}

// Lookup resolves a token (canonicalized) to a live session, or nil.
func (r *Registry) Lookup(token string) *Session {
	token = strings.ToUpper(strings.TrimSpace(token))
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[token]
}

// Remove drops a session's token binding. Safe to call more than once.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Len reports the number of reserved/registered tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

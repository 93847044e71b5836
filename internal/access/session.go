package access

import "time"

// SessionState is the lifecycle of an authenticated session. There is no
// implicit re-authentication: an expired session must log in again.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	}
	return "unauthenticated"
}

// Session binds an identity to an issue time and TTL.
type Session struct {
	Identity *Identity
	IssuedAt time.Time
	TTL      time.Duration
}

// NewSession opens a session for an authenticated identity.
func NewSession(id *Identity, ttl time.Duration) *Session {
	return &Session{Identity: id, IssuedAt: time.Now(), TTL: ttl}
}

// State reports the session's state at the given instant.
func (s *Session) State(now time.Time) SessionState {
	if s == nil || s.Identity == nil {
		return StateUnauthenticated
	}
	if s.TTL > 0 && now.Sub(s.IssuedAt) >= s.TTL {
		return StateExpired
	}
	return StateAuthenticated
}

// Check returns the session's identity, or an AuthError when the session
// is absent or expired.
func (s *Session) Check(now time.Time) (*Identity, error) {
	switch s.State(now) {
	case StateAuthenticated:
		return s.Identity, nil
	case StateExpired:
		return nil, &AuthError{Username: s.Identity.Username, Reason: ReasonExpired}
	}
	return nil, &AuthError{Reason: ReasonUnauthenticated}
}

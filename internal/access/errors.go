package access

import "fmt"

// AuthError reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonUnknownUser     = "unknown_user"
	ReasonBadCredentials  = "bad_credentials"
	ReasonLocked          = "locked"
	ReasonUnauthorized    = "unauthorized"
	ReasonOutOfScope      = "out_of_scope"
	ReasonExpired         = "expired"
)

// AuthError reports a failed authentication or authorization. Terminal
// for the attempt: callers must not retry automatically.
type AuthError struct {
	Username string
	Reason   string
	// Locked marks the soft lockout after repeated credential failures.
	Locked bool
}

func (e *AuthError) Error() string {
	if e.Username == "" {
		return "access denied: " + e.Reason
	}
	return fmt.Sprintf("access denied for %s: %s", e.Username, e.Reason)
}

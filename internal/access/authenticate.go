package access

import (
	"context"
	"fmt"
	"time"

	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

// Verifier checks a plaintext credential against a stored hash. The
// hashing scheme is opaque to this package.
type Verifier interface {
	Verify(hash, credential string) bool
}

// UserSource yields the current Users master rows.
type UserSource interface {
	Users(ctx context.Context) ([]tabular.Row, error)
}

// Authenticator turns username + credential into an Identity, tracking
// failed attempts per username.
type Authenticator struct {
	users   UserSource
	verify  Verifier
	lockout *lockout
}

// NewAuthenticator wires the Users source and credential verifier.
// threshold consecutive failures inside window soft-lock a username.
func NewAuthenticator(users UserSource, v Verifier, threshold int, window time.Duration) *Authenticator {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Authenticator{
		users:   users,
		verify:  v,
		lockout: newLockout(threshold, window),
	}
}

// Authenticate verifies the credential and builds the caller's identity.
// Unknown users and bad credentials both count toward the lockout and
// both answer with the same reason, so the response does not reveal which
// usernames exist.
func (a *Authenticator) Authenticate(ctx context.Context, username, credential string) (*Identity, error) {
	if a.lockout.locked(username) {
		return nil, &AuthError{Username: username, Reason: ReasonLocked, Locked: true}
	}
	row, err := a.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if row == nil || !a.verify.Verify(row[schema.ColPasswordHash], credential) {
		if a.lockout.fail(username) {
			return nil, &AuthError{Username: username, Reason: ReasonLocked, Locked: true}
		}
		return nil, &AuthError{Username: username, Reason: ReasonBadCredentials}
	}
	id, err := identityFromRow(row)
	if err != nil {
		return nil, err
	}
	a.lockout.reset(username)
	return id, nil
}

// Identity rebuilds the identity of an already-authenticated username,
// for session resumption. Scope and role are re-read from the Users
// table, so a scope change takes effect on the next request.
func (a *Authenticator) Identity(ctx context.Context, username string) (*Identity, error) {
	row, err := a.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &AuthError{Username: username, Reason: ReasonUnknownUser}
	}
	return identityFromRow(row)
}

func (a *Authenticator) findUser(ctx context.Context, username string) (tabular.Row, error) {
	rows, err := a.users.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, row := range rows {
		if row[schema.ColUsername] == username {
			return row, nil
		}
	}
	return nil, nil
}

func identityFromRow(row tabular.Row) (*Identity, error) {
	role, err := ParseRole(row[schema.ColRole])
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", row[schema.ColUsername], err)
	}
	scope, err := ParseScope(row[schema.ColClients])
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", row[schema.ColUsername], err)
	}
	if role == RoleAdmin {
		scope = AllClients()
	}
	return &Identity{
		Username:    row[schema.ColUsername],
		DisplayName: row[schema.ColDisplayName],
		Role:        role,
		Scope:       scope,
	}, nil
}

// Package handlers is the thin HTTP glue over the intake core. No
// business rule lives here: every operation goes through the access
// checkpoint and the stores, and the handlers only translate HTTP
// requests and the core error taxonomy.
package handlers

import (
	"net/http"
	"time"

	"github.com/ritetech/intake/auth"
	"github.com/ritetech/intake/httpx"
	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/contacts"
	"github.com/ritetech/intake/internal/masters"
	"github.com/ritetech/intake/internal/records"
	"github.com/ritetech/intake/internal/schema"
)

// Core bundles the components the handlers call into.
type Core struct {
	Auth       *access.Authenticator
	Masters    *masters.Cache
	Records    *records.Store
	Contacts   *contacts.Resolver
	Registry   *schema.Registry
	SessionTTL time.Duration
}

// identity resolves the request's session to a fresh Identity. Role and
// scope are re-read from the Users table on every request, so admin
// changes take effect immediately; sessions older than SessionTTL are
// rejected regardless of what the cookie's Expires attribute claimed.
func (c *Core) identity(r *http.Request) (*access.Identity, error) {
	username, issuedAt, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return nil, &access.AuthError{Reason: access.ReasonUnauthenticated}
	}
	id, err := c.Auth.Identity(r.Context(), username)
	if err != nil {
		return nil, err
	}
	sess := &access.Session{Identity: id, IssuedAt: issuedAt, TTL: c.SessionTTL}
	return sess.Check(time.Now())
}

// WithIdentity wraps a handler that needs an authenticated caller.
func (c *Core) WithIdentity(fn func(w http.ResponseWriter, r *http.Request, id *access.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := c.identity(r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		fn(w, r, id)
	}
}

package access

import (
	"fmt"
	"strings"

	"github.com/ritetech/intake/internal/schema"
)

// Role is the enumerated access level of an identity.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleAgent    Role = "Agent"
	RoleReadOnly Role = "ReadOnly"
)

// ParseRole maps a Users-table role cell to a Role, tolerating case and
// surrounding whitespace.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "super admin", "superadmin":
		return RoleAdmin, nil
	case "manager":
		return RoleManager, nil
	case "agent", "user":
		return RoleAgent, nil
	case "readonly", "read-only", "read only":
		return RoleReadOnly, nil
	}
	return "", fmt.Errorf("access: unknown role %q", raw)
}

// Scope is the ordered set of client IDs an identity may touch. The ALL
// sentinel grants every client.
type Scope struct {
	all bool
	ids []string
}

// AllClients is the unrestricted scope.
func AllClients() Scope { return Scope{all: true} }

// NewScope builds a scope over the given client IDs, preserving order.
func NewScope(ids ...string) Scope {
	return Scope{ids: append([]string(nil), ids...)}
}

// ParseScope reads the Users-table clients cell: a comma-separated ordered
// set of client IDs, or ALL (case-insensitive) for the unrestricted scope.
// Malformed entries (blank items between delimiters, duplicates) are
// flagged as a validation error rather than guessed at.
func ParseScope(raw string) (Scope, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Scope{}, nil
	}
	if strings.EqualFold(trimmed, "all") {
		return AllClients(), nil
	}
	parts := strings.Split(trimmed, ",")
	seen := make(map[string]bool, len(parts))
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		id := strings.TrimSpace(p)
		if id == "" || seen[id] {
			return Scope{}, &schema.ValidationError{
				Table:      schema.TableUsers,
				Violations: schema.Violations{schema.ColClients: "malformed_scope"},
			}
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return Scope{ids: ids}, nil
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool { return s.all }

// Contains reports whether clientID is inside the scope.
func (s Scope) Contains(clientID string) bool {
	if s.all {
		return true
	}
	for _, id := range s.ids {
		if id == clientID {
			return true
		}
	}
	return false
}

// IDs returns a copy of the scoped client IDs; nil for the ALL scope.
func (s Scope) IDs() []string {
	if s.all {
		return nil
	}
	return append([]string(nil), s.ids...)
}

func (s Scope) String() string {
	if s.all {
		return "ALL"
	}
	return strings.Join(s.ids, ",")
}

// Identity is an authenticated user as seen by the authorization layer.
// The credential never travels past Authenticate.
type Identity struct {
	Username    string
	DisplayName string
	Role        Role
	Scope       Scope
}

// Package access is the single authorization checkpoint of the intake
// core. It resolves an authenticated identity to a role profile and a
// client scope, and every read or mutation of scoped data must pass
// through Authorize. The package has no dependency on storage or
// transport; it only reasons about identities, actions and scopes.
package access

import "strings"

// Action describes the kind of operation an identity wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource type names used in permissions.
const (
	ResourceRecord  = "record"
	ResourceMaster  = "master"
	ResourceProfile = "profile"
)

// Permission is an allowed action on a resource type, in the form
// "resource:action".
type Permission string

// NewPermission builds a permission from resource type and action.
func NewPermission(resource string, action Action) Permission {
	return Permission(resource + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resource string, action Action) {
	parts := strings.SplitN(string(p), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], Action(parts[1])
}

// Wildcards for super permissions.
const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches reports whether this permission covers a requested one.
// "*:*" covers everything; "record:*" covers every record action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin {
		return true
	}
	if p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res == reqRes && string(act) == WildcardAll
}

package access

// Profile is a role's permission set.
type Profile struct {
	name  string
	perms []Permission
}

func (p Profile) Name() string { return p.name }

// Has reports whether the profile covers the requested permission,
// honouring wildcards.
func (p Profile) Has(requested Permission) bool {
	for _, perm := range p.perms {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the profile's permission list.
func (p Profile) Permissions() []Permission {
	return append([]Permission(nil), p.perms...)
}

// Role profiles are static: the role enumeration is closed and the rules
// per role are fixed, so there is nothing to resolve from storage.
var profiles = map[Role]Profile{
	RoleAdmin: {
		name:  "admin",
		perms: []Permission{PermissionSuperAdmin},
	},
	RoleManager: {
		name: "manager",
		perms: []Permission{
			NewPermission(ResourceRecord, ActionView),
			NewPermission(ResourceRecord, ActionList),
			NewPermission(ResourceRecord, ActionCreate),
			NewPermission(ResourceRecord, ActionUpdate),
			NewPermission(ResourceMaster, ActionView),
			NewPermission(ResourceMaster, ActionList),
			NewPermission(ResourceProfile, ActionUpdate),
		},
	},
	RoleAgent: {
		name: "agent",
		perms: []Permission{
			NewPermission(ResourceRecord, ActionView),
			NewPermission(ResourceRecord, ActionList),
			NewPermission(ResourceRecord, ActionCreate),
			NewPermission(ResourceRecord, ActionUpdate),
			NewPermission(ResourceMaster, ActionView),
			NewPermission(ResourceMaster, ActionList),
			NewPermission(ResourceProfile, ActionUpdate),
		},
	},
	RoleReadOnly: {
		name: "readonly",
		perms: []Permission{
			NewPermission(ResourceRecord, ActionView),
			NewPermission(ResourceRecord, ActionList),
			NewPermission(ResourceMaster, ActionView),
			NewPermission(ResourceMaster, ActionList),
		},
	},
}

// ProfileFor returns the permission profile of a role. Unknown roles get
// an empty profile that denies everything.
func ProfileFor(role Role) Profile {
	return profiles[role]
}

package access

// Authorize is the capability-check choke point: profile permission first,
// then client scope when the action touches a specific client. clientID is
// empty for actions without a client context (listing before scoping,
// master reads).
//
// Admin passes every check. Other roles need their profile to grant
// resource:action and, when clientID is set, their scope to contain it.
func Authorize(id *Identity, action Action, resource string, clientID string) error {
	if id == nil || id.Username == "" {
		return &AuthError{Reason: ReasonUnauthenticated}
	}
	profile := ProfileFor(id.Role)
	if !profile.Has(NewPermission(resource, action)) {
		return &AuthError{Username: id.Username, Reason: ReasonUnauthorized}
	}
	if clientID == "" || id.Role == RoleAdmin {
		return nil
	}
	if !id.Scope.Contains(clientID) {
		return &AuthError{Username: id.Username, Reason: ReasonOutOfScope}
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func Can(id *Identity, action Action, resource string, clientID string) bool {
	return Authorize(id, action, resource, clientID) == nil
}

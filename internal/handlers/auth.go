package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ritetech/intake/auth"
	"github.com/ritetech/intake/httpx"
	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type identityResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	Clients     string `json:"clients"`
}

func identityPayload(id *access.Identity) identityResponse {
	return identityResponse{
		Username:    id.Username,
		DisplayName: id.DisplayName,
		Role:        string(id.Role),
		Clients:     id.Scope.String(),
	}
}

// Login authenticates and opens a session cookie.
func (c *Core) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", nil)
		return
	}
	id, err := c.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	auth.CreateSession(w, id.Username, c.SessionTTL)
	httpx.JSON(w, http.StatusOK, identityPayload(id))
}

// Logout clears the session cookie. There is no implicit
// re-authentication afterwards.
func (c *Core) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	httpx.JSON(w, http.StatusOK, nil)
}

// Me reports the caller's resolved identity.
func (c *Core) Me(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	httpx.JSON(w, http.StatusOK, identityPayload(id))
}

type passwordChangeRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

// ChangePassword lets a caller rotate their own credential. The current
// credential is re-verified before the Users row is rewritten.
func (c *Core) ChangePassword(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	if err := access.Authorize(id, access.ActionUpdate, access.ResourceProfile, ""); err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.New == "" {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", nil)
		return
	}
	if _, err := c.Auth.Authenticate(r.Context(), id.Username, req.Current); err != nil {
		httpx.WriteError(w, err)
		return
	}
	hash, err := auth.HashPassword(req.New)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	rows, err := c.Masters.Users(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var row tabular.Row
	for _, u := range rows {
		if u[schema.ColUsername] == id.Username {
			row = u.Clone()
			break
		}
	}
	if row == nil {
		httpx.WriteError(w, &access.AuthError{Username: id.Username, Reason: access.ReasonUnknownUser})
		return
	}
	row[schema.ColPasswordHash] = hash
	if err := c.Masters.Upsert(r.Context(), schema.TableUsers, row); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

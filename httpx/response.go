// Package httpx holds the JSON response helpers shared by the handlers,
// including the mapping from the core error taxonomy to HTTP statuses.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/masters"
	"github.com/ritetech/intake/internal/records"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// WriteError maps a core error to its HTTP shape. Each taxonomy member
// keeps its structure (kind, field and table context) so the caller can
// render a specific message, not a generic failure.
func WriteError(w http.ResponseWriter, err error) {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		JSONError(w, http.StatusBadRequest, "validation_failed", map[string]any{
			"table":      ve.Table,
			"violations": ve.Violations,
		})
		return
	}
	var ae *access.AuthError
	if errors.As(err, &ae) {
		status := http.StatusForbidden
		switch {
		case ae.Locked:
			status = http.StatusLocked
		case ae.Reason == access.ReasonUnauthenticated || ae.Reason == access.ReasonExpired ||
			ae.Reason == access.ReasonBadCredentials || ae.Reason == access.ReasonUnknownUser:
			status = http.StatusUnauthorized
		}
		JSONError(w, status, ae.Reason, nil)
		return
	}
	var ce *tabular.ConflictError
	if errors.As(err, &ce) {
		JSONError(w, http.StatusConflict, "version_conflict", map[string]any{
			"table": ce.Table,
		})
		return
	}
	var te *tabular.TransientError
	if errors.As(err, &te) {
		JSONError(w, http.StatusServiceUnavailable, "store_unavailable", map[string]any{
			"table": te.Table,
		})
		return
	}
	if errors.Is(err, records.ErrNotFound) || errors.Is(err, masters.ErrNotFound) {
		JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}

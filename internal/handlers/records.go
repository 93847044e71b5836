package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ritetech/intake/httpx"
	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/records"
	"github.com/ritetech/intake/internal/tabular"
)

type recordPayload struct {
	Fields         tabular.Row `json:"fields"`
	AllowDuplicate bool        `json:"allow_duplicate"`
}

type recordResponse struct {
	ID        string      `json:"record_id"`
	ClientID  string      `json:"client_id"`
	Status    string      `json:"status"`
	CreatedBy string      `json:"created_by"`
	CreatedAt string      `json:"created_at,omitempty"`
	UpdatedBy string      `json:"updated_by,omitempty"`
	UpdatedAt string      `json:"updated_at,omitempty"`
	Fields    tabular.Row `json:"fields"`
}

func recordPayloadOf(rec records.Record) recordResponse {
	out := recordResponse{
		ID:        rec.ID,
		ClientID:  rec.ClientID,
		Status:    rec.Status,
		CreatedBy: rec.CreatedBy,
		UpdatedBy: rec.UpdatedBy,
		Fields:    rec.Fields,
	}
	if !rec.CreatedAt.IsZero() {
		out.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !rec.UpdatedAt.IsZero() {
		out.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// filterFromQuery builds the record filter from query parameters. Bad
// date bounds are ignored rather than guessed at; scope enforcement does
// not depend on any of this.
func filterFromQuery(r *http.Request) records.Filter {
	q := r.URL.Query()
	f := records.Filter{
		Status:   q.Get("status"),
		ClientID: q.Get("client_id"),
		Search:   q.Get("q"),
		SortBy:   q.Get("sort"),
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		f.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		f.To = to
	}
	return f
}

// ListRecords returns the caller's scoped, filtered record set.
func (c *Core) ListRecords(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	recs, err := c.Records.List(r.Context(), id, filterFromQuery(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	out := make([]recordResponse, len(recs))
	for i, rec := range recs {
		out[i] = recordPayloadOf(rec)
	}
	httpx.JSON(w, http.StatusOK, out)
}

// CreateRecord appends a new intake row for the caller.
func (c *Core) CreateRecord(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	var req recordPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", nil)
		return
	}
	recordID, err := c.Records.Create(r.Context(), id, req.Fields, req.AllowDuplicate)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"record_id": recordID})
}

// UpdateRecord edits an existing intake row in place.
func (c *Core) UpdateRecord(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	recordID := r.PathValue("id")
	var req recordPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", nil)
		return
	}
	if err := c.Records.Update(r.Context(), id, recordID, req.Fields, req.AllowDuplicate); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

// Recipients resolves the To/CC prefill for a client's outgoing message.
func (c *Core) Recipients(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	clientID := r.PathValue("clientID")
	if err := access.Authorize(id, access.ActionView, access.ResourceRecord, clientID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	to, cc, err := c.Contacts.Recipients(r.Context(), clientID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"to": to, "cc": cc})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ritetech/intake/httpx"
	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/tabular"
)

// GetMaster returns a master table's rows. Stored credentials never
// leave the server: the Users projection drops the hash column.
func (c *Core) GetMaster(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	table := r.PathValue("table")
	if err := access.Authorize(id, access.ActionView, access.ResourceMaster, ""); err != nil {
		httpx.WriteError(w, err)
		return
	}
	rows, err := c.Masters.Get(r.Context(), table)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if table == schema.TableUsers {
		for _, row := range rows {
			delete(row, schema.ColPasswordHash)
		}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// UpsertMaster merges one row into a master table. Only Admin carries
// master:update.
func (c *Core) UpsertMaster(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	table := r.PathValue("table")
	if err := access.Authorize(id, access.ActionUpdate, access.ResourceMaster, ""); err != nil {
		httpx.WriteError(w, err)
		return
	}
	var row tabular.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", nil)
		return
	}
	if err := c.Masters.Upsert(r.Context(), table, row); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

// DeleteMaster removes one keyed row. Removal is an explicit admin
// action; nothing else in the system deletes master rows.
func (c *Core) DeleteMaster(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	table := r.PathValue("table")
	key := r.PathValue("key")
	if err := access.Authorize(id, access.ActionDelete, access.ResourceMaster, ""); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := c.Masters.Delete(r.Context(), table, key); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nil)
}

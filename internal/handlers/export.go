package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ritetech/intake/httpx"
	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/export"
	"github.com/ritetech/intake/internal/schema"
)

// ExportCSV downloads the caller's scoped, filtered records as CSV. The
// projector receives an already-scoped set; it applies no access logic
// of its own.
func (c *Core) ExportCSV(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	recs, err := c.Records.List(r.Context(), id, filterFromQuery(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var columns []string
	if raw := r.URL.Query().Get("columns"); raw != "" {
		columns = schema.SplitList(raw)
	}
	blob, err := export.ProjectCSV(c.Registry, recs, columns)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	sendBlob(w, blob, "text/csv", fmt.Sprintf("intake_export_%s.csv", time.Now().Format("20060102_150405")))
}

// ExportSummary downloads the Excel summary pivot of the caller's scoped
// record set.
func (c *Core) ExportSummary(w http.ResponseWriter, r *http.Request, id *access.Identity) {
	recs, err := c.Records.List(r.Context(), id, filterFromQuery(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	blob, err := export.ProjectSummaryXLSX(recs)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	sendBlob(w, blob,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("intake_summary_%s.xlsx", time.Now().Format("20060102_150405")))
}

func sendBlob(w http.ResponseWriter, blob []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

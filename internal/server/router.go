// Package server wires the HTTP routes over the handler set.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/ritetech/intake/auth"
	"github.com/ritetech/intake/internal/handlers"
)

// withLogging times each request into the process log.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// New builds the full route table. Every authenticated route resolves
// the caller's identity fresh from the Users table.
func New(core *handlers.Core) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", core.Login)
	mux.HandleFunc("POST /api/logout", core.Logout)
	mux.HandleFunc("GET /api/me", core.WithIdentity(core.Me))
	mux.HandleFunc("POST /api/profile/password", core.WithIdentity(core.ChangePassword))

	mux.HandleFunc("GET /api/records", core.WithIdentity(core.ListRecords))
	mux.HandleFunc("POST /api/records", core.WithIdentity(core.CreateRecord))
	mux.HandleFunc("PUT /api/records/{id}", core.WithIdentity(core.UpdateRecord))

	mux.HandleFunc("GET /api/masters/{table}", core.WithIdentity(core.GetMaster))
	mux.HandleFunc("PUT /api/masters/{table}", core.WithIdentity(core.UpsertMaster))
	mux.HandleFunc("DELETE /api/masters/{table}/{key}", core.WithIdentity(core.DeleteMaster))

	mux.HandleFunc("GET /api/export/csv", core.WithIdentity(core.ExportCSV))
	mux.HandleFunc("GET /api/export/summary", core.WithIdentity(core.ExportSummary))

	mux.HandleFunc("GET /api/contacts/{clientID}", core.WithIdentity(core.Recipients))

	return withLogging(auth.Middleware(mux))
}

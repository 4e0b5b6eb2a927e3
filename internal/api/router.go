// internal/api/router.go
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"libracore/internal/audit"
	"libracore/internal/catalog"
	"libracore/internal/circulation"
	"libracore/internal/fines"
	"libracore/internal/membership"
	"libracore/internal/outbox"
	"libracore/internal/reservations"
)

// NewRouter wires every service against the given database and mounts their
// handlers under /api/v1.
func NewRouter(db *sql.DB) http.Handler {
	auditLog := audit.NewLog(db)
	catalogSvc := catalog.NewService(db)
	outboxSvc := outbox.NewService(db)
	reservationSvc := reservations.NewService(db, auditLog)
	circulationSvc := circulation.NewService(db, reservationSvc, auditLog)
	fineSvc := fines.NewService(db, auditLog)
	memberSvc := membership.NewService(db, auditLog)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/books", catalog.NewHandler(catalogSvc).Routes())
		r.Mount("/loans", circulation.NewHandler(circulationSvc).Routes())
		r.Mount("/reservations", reservations.NewHandler(reservationSvc).Routes())
		r.Mount("/fines", fines.NewHandler(fineSvc).Routes())
		r.Mount("/members", membership.NewHandler(memberSvc).Routes())
		r.Mount("/notifications", outbox.NewHandler(outboxSvc).Routes())
	})

	return r
}

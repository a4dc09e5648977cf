// Package handler serves the liveness probe.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/moneywright/moneywright/internal/server/api"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler answers GET /api/health with a bounded database ping.
type Handler struct {
	db      Pinger
	timeout time.Duration
}

// New returns a health handler that pings db on each probe. A nil db skips
// the ping.
func New(db Pinger) *Handler {
	return &Handler{db: db, timeout: time.Second}
}

// Register mounts the health route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.check)
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			api.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	api.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Package handler exposes account lifecycle over HTTP.
package handler

import (
	"log"
	"net/http"

	"github.com/moneywright/moneywright/internal/audit"
	auditdomain "github.com/moneywright/moneywright/internal/audit/domain"
	"github.com/moneywright/moneywright/internal/server/api"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	userrepo "github.com/moneywright/moneywright/internal/user/repository"
)

// Handler serves account deletion.
type Handler struct {
	users   userrepo.Repository
	audit   audit.Recorder
	cookies *cookies.Config
	auth    *middleware.Authenticator
}

// New returns an account handler.
func New(users userrepo.Repository, auditLog audit.Recorder, cookieCfg *cookies.Config, auth *middleware.Authenticator) *Handler {
	return &Handler{users: users, audit: auditLog, cookies: cookieCfg, auth: auth}
}

// Register mounts the account routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("DELETE /api/auth/account", h.auth.RequireAuth(http.HandlerFunc(h.deleteAccount)))
}

// deleteAccount removes the caller's user row. Sessions and audit history go
// with it via ON DELETE CASCADE; the deletion itself is recorded afterwards
// with no user reference so the tombstone survives.
func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	var email string
	if u, err := h.users.GetByID(r.Context(), p.UserID); err == nil && u != nil {
		email = u.Email
	}

	if err := h.users.Delete(r.Context(), p.UserID); err != nil {
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not delete account")
		return
	}

	log.Printf("user: account %s deleted", p.UserID)
	h.audit.Record(r.Context(), "", auditdomain.ActionAccountDeleted, email, middleware.ClientIP(r), r.UserAgent())
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

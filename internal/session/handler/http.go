// Package handler exposes the session lifecycle over HTTP: refresh, logout,
// the identity probe, and session management for the signed-in user.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/moneywright/moneywright/internal/server/api"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	"github.com/moneywright/moneywright/internal/session/domain"
	"github.com/moneywright/moneywright/internal/session/service"
	userrepo "github.com/moneywright/moneywright/internal/user/repository"
)

// SessionService is the slice of the session manager the handler consumes.
type SessionService interface {
	RefreshSession(ctx context.Context, refreshToken, fingerprint string, meta domain.ClientMeta) (*service.TokenBundle, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	RevokeUserSession(ctx context.Context, userID, sessionID string) error
	RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) (int64, error)
	ListSessions(ctx context.Context, userID, currentSessionID string) ([]service.SessionInfo, error)
}

// Handler serves the session endpoints.
type Handler struct {
	sessions SessionService
	users    userrepo.Repository
	cookies  *cookies.Config
	auth     *middleware.Authenticator
}

// New returns a session handler.
func New(sessions SessionService, users userrepo.Repository, cookieCfg *cookies.Config, auth *middleware.Authenticator) *Handler {
	return &Handler{sessions: sessions, users: users, cookies: cookieCfg, auth: auth}
}

// Register mounts the session routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/auth/refresh", http.HandlerFunc(h.refresh))
	mux.Handle("POST /api/auth/logout", h.auth.OptionalAuth(http.HandlerFunc(h.logout)))
	mux.Handle("GET /api/auth/session", h.auth.OptionalAuth(http.HandlerFunc(h.probe)))
	mux.Handle("GET /api/auth/sessions", h.auth.RequireAuth(http.HandlerFunc(h.list)))
	mux.Handle("DELETE /api/auth/sessions/{id}", h.auth.RequireAuth(http.HandlerFunc(h.revoke)))
	mux.Handle("POST /api/auth/sessions/revoke-others", h.auth.RequireAuth(http.HandlerFunc(h.revokeOthers)))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Fingerprint  string `json:"fingerprint"`
}

// refresh rotates the token pair. Credentials come from the JSON body for
// Bearer-style clients, falling back to the auth cookies.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}
	if req.RefreshToken == "" {
		if v, ok := h.cookies.ReadRefreshToken(r); ok {
			req.RefreshToken = v
		}
	}
	if req.Fingerprint == "" {
		if v, ok := h.cookies.ReadFingerprint(r); ok {
			req.Fingerprint = v
		}
	}

	bundle, err := h.sessions.RefreshSession(r.Context(), req.RefreshToken, req.Fingerprint, clientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshReuse):
			h.cookies.Clear(w)
			api.Error(w, http.StatusUnauthorized, "session_revoked", "refresh token reuse detected, session revoked")
		case errors.Is(err, service.ErrSessionInvalid):
			h.cookies.Clear(w)
			api.Error(w, http.StatusUnauthorized, "invalid_session", "session invalid or expired")
		default:
			api.Error(w, http.StatusInternalServerError, "internal_error", "could not refresh session")
		}
		return
	}

	h.cookies.Set(w, bundle.AccessToken, bundle.RefreshToken, bundle.Fingerprint)
	resp := api.AuthResponse{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Fingerprint:  bundle.Fingerprint,
		ExpiresIn:    bundle.ExpiresIn,
	}
	if u, err := h.users.GetByID(r.Context(), bundle.UserID); err == nil {
		resp.User = api.UserFromDomain(u)
	}
	api.JSON(w, http.StatusOK, resp)
}

// logout revokes the current session and clears cookies. Revocation failures
// are logged and swallowed; the client forgets its credentials either way.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sid, ok := middleware.GetSessionID(ctx); ok && sid != "" {
		if err := h.sessions.RevokeSession(ctx, sid); err != nil {
			log.Printf("session: logout revoke failed for %s: %v", sid, err)
		}
	} else if rt, ok := h.cookies.ReadRefreshToken(r); ok {
		if err := h.sessions.RevokeByRefreshToken(ctx, rt); err != nil && !errors.Is(err, service.ErrSessionInvalid) {
			log.Printf("session: logout revoke by refresh token failed: %v", err)
		}
	}
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

type probeResponse struct {
	Authenticated bool      `json:"authenticated"`
	User          *api.User `json:"user,omitempty"`
}

// probe answers "who am I" without failing: anonymous callers get
// authenticated=false instead of 401 so clients can branch cheaply.
func (h *Handler) probe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		api.JSON(w, http.StatusOK, probeResponse{})
		return
	}
	resp := probeResponse{Authenticated: true}
	if u, err := h.users.GetByID(r.Context(), p.UserID); err == nil {
		resp.User = api.UserFromDomain(u)
	}
	api.JSON(w, http.StatusOK, resp)
}

type sessionView struct {
	ID         string    `json:"id"`
	UserAgent  string    `json:"userAgent"`
	IP         string    `json:"ip"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

type listResponse struct {
	Sessions []sessionView `json:"sessions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	infos, err := h.sessions.ListSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not list sessions")
		return
	}
	resp := listResponse{Sessions: make([]sessionView, 0, len(infos))}
	for _, s := range infos {
		resp.Sessions = append(resp.Sessions, sessionView{
			ID:         s.ID,
			UserAgent:  s.UserAgent,
			IP:         s.IP,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.Current,
		})
	}
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	err := h.sessions.RevokeUserSession(r.Context(), p.UserID, r.PathValue("id"))
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		api.Error(w, http.StatusNotFound, "session_not_found", "no such session")
	case err != nil:
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not revoke session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type revokeOthersResponse struct {
	Revoked int64 `json:"revoked"`
}

func (h *Handler) revokeOthers(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	n, err := h.sessions.RevokeOtherSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not revoke sessions")
		return
	}
	api.JSON(w, http.StatusOK, revokeOthersResponse{Revoked: n})
}

func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{UserAgent: r.UserAgent(), IP: middleware.ClientIP(r)}
}

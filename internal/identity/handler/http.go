// Package handler exposes sign-in over HTTP: the Google federation handshake
// and the local-mode bootstrap.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/moneywright/moneywright/internal/identity/service"
	"github.com/moneywright/moneywright/internal/server/api"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	sessiondomain "github.com/moneywright/moneywright/internal/session/domain"
	sessionservice "github.com/moneywright/moneywright/internal/session/service"
	userdomain "github.com/moneywright/moneywright/internal/user/domain"
)

// GoogleExchange is the slice of the federation service the handler consumes.
type GoogleExchange interface {
	GenerateAuthURL(ctx context.Context, redirectTarget string) (url, state string, err error)
	Login(ctx context.Context, code, state string, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, *userdomain.User, string, error)
}

// LocalBootstrap issues sessions for the single-user local deployment.
type LocalBootstrap interface {
	Bootstrap(ctx context.Context, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, *userdomain.User, error)
}

// Handler serves the sign-in endpoints. google and local are nil for the
// mode that is not deployed; their routes then answer 403.
type Handler struct {
	google  GoogleExchange
	local   LocalBootstrap
	cookies *cookies.Config
}

// New returns an identity handler. Pass nil for the disabled mode.
func New(google GoogleExchange, local LocalBootstrap, cookieCfg *cookies.Config) *Handler {
	return &Handler{google: google, local: local, cookies: cookieCfg}
}

// Register mounts the sign-in routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	googleGate := middleware.RequireFeature(h.google != nil)
	localGate := middleware.RequireFeature(h.local != nil)
	mux.Handle("GET /api/auth/google/url", googleGate(http.HandlerFunc(h.googleURL)))
	mux.Handle("POST /api/auth/google/exchange", googleGate(http.HandlerFunc(h.googleExchange)))
	mux.Handle("POST /api/auth/local", localGate(http.HandlerFunc(h.localBootstrap)))
}

type authURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

func (h *Handler) googleURL(w http.ResponseWriter, r *http.Request) {
	url, state, err := h.google.GenerateAuthURL(r.Context(), r.URL.Query().Get("redirect"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not build authorization URL")
		return
	}
	api.JSON(w, http.StatusOK, authURLResponse{URL: url, State: state})
}

type exchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (h *Handler) googleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Code == "" || req.State == "" {
		api.Error(w, http.StatusBadRequest, "invalid_request", "code and state are required")
		return
	}

	bundle, user, redirect, err := h.google.Login(r.Context(), req.Code, req.State, clientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			api.Error(w, http.StatusUnauthorized, "invalid_state", "state is invalid, expired, or already used")
		case errors.Is(err, service.ErrTokenExchangeFailed):
			api.Error(w, http.StatusBadGateway, "upstream_failed", "could not exchange the authorization code")
		case errors.Is(err, service.ErrProfileIncomplete):
			api.Error(w, http.StatusBadGateway, "incomplete_profile", "identity provider returned an incomplete profile")
		default:
			api.Error(w, http.StatusInternalServerError, "internal_error", "sign-in failed")
		}
		return
	}

	h.cookies.Set(w, bundle.AccessToken, bundle.RefreshToken, bundle.Fingerprint)
	api.JSON(w, http.StatusOK, api.AuthResponse{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Fingerprint:  bundle.Fingerprint,
		ExpiresIn:    bundle.ExpiresIn,
		User:         api.UserFromDomain(user),
		Redirect:     redirect,
	})
}

func (h *Handler) localBootstrap(w http.ResponseWriter, r *http.Request) {
	bundle, user, err := h.local.Bootstrap(r.Context(), clientMeta(r))
	if err != nil {
		if errors.Is(err, service.ErrPinRequired) {
			api.Error(w, http.StatusUnauthorized, "pin_required", "a PIN is configured; verify it to sign in")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not start local session")
		return
	}

	h.cookies.Set(w, bundle.AccessToken, bundle.RefreshToken, bundle.Fingerprint)
	api.JSON(w, http.StatusOK, api.AuthResponse{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Fingerprint:  bundle.Fingerprint,
		ExpiresIn:    bundle.ExpiresIn,
		User:         api.UserFromDomain(user),
	})
}

func clientMeta(r *http.Request) sessiondomain.ClientMeta {
	return sessiondomain.ClientMeta{UserAgent: r.UserAgent(), IP: middleware.ClientIP(r)}
}

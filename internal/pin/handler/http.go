// Package handler exposes local PIN auth over HTTP. All routes answer 403
// when the deployment is not in local mode.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/moneywright/moneywright/internal/pin/service"
	"github.com/moneywright/moneywright/internal/server/api"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	sessiondomain "github.com/moneywright/moneywright/internal/session/domain"
	sessionservice "github.com/moneywright/moneywright/internal/session/service"
	userdomain "github.com/moneywright/moneywright/internal/user/domain"
)

// PinService is the slice of the PIN service the handler consumes.
type PinService interface {
	Status(ctx context.Context) (*service.StatusInfo, error)
	Setup(ctx context.Context, pin string) (string, error)
	Verify(ctx context.Context, pin string) error
	RecoverWithBackupCode(ctx context.Context, code, newPin string) (string, error)
	ChangePin(ctx context.Context, currentPin, newPin string) error
	RegenerateBackupCode(ctx context.Context, pin string) (string, error)
}

// SessionIssuer mints a local session after a successful verification.
type SessionIssuer interface {
	IssueSession(ctx context.Context, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, *userdomain.User, error)
}

// Handler serves the PIN endpoints. pins is nil outside local mode; the
// routes then answer 403.
type Handler struct {
	pins     PinService
	sessions SessionIssuer
	cookies  *cookies.Config
	auth     *middleware.Authenticator
}

// New returns a PIN handler. Pass nil pins when PIN auth is disabled.
func New(pins PinService, sessions SessionIssuer, cookieCfg *cookies.Config, auth *middleware.Authenticator) *Handler {
	return &Handler{pins: pins, sessions: sessions, cookies: cookieCfg, auth: auth}
}

// Register mounts the PIN routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	gate := middleware.RequireFeature(h.pins != nil)
	mux.Handle("GET /api/auth/pin/status", gate(http.HandlerFunc(h.status)))
	mux.Handle("POST /api/auth/pin/setup", gate(http.HandlerFunc(h.setup)))
	mux.Handle("POST /api/auth/pin/verify", gate(http.HandlerFunc(h.verify)))
	mux.Handle("POST /api/auth/pin/recover", gate(http.HandlerFunc(h.recover)))
	mux.Handle("POST /api/auth/pin/change", gate(h.auth.RequireAuth(http.HandlerFunc(h.change))))
	mux.Handle("POST /api/auth/pin/backup-code", gate(h.auth.RequireAuth(http.HandlerFunc(h.backupCode))))
}

type statusResponse struct {
	Configured bool  `json:"configured"`
	Locked     bool  `json:"locked"`
	RetryAfter int64 `json:"retryAfter,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	info, err := h.pins.Status(r.Context())
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not read pin status")
		return
	}
	api.JSON(w, http.StatusOK, statusResponse{
		Configured: info.Configured,
		Locked:     info.Locked,
		RetryAfter: info.RetryAfter,
	})
}

type backupCodeResponse struct {
	BackupCode string `json:"backupCode"`
}

type setupRequest struct {
	Pin string `json:"pin"`
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	code, err := h.pins.Setup(r.Context(), req.Pin)
	if err != nil {
		writePinError(w, err, "invalid_pin")
		return
	}
	api.JSON(w, http.StatusOK, backupCodeResponse{BackupCode: code})
}

type verifyRequest struct {
	Pin string `json:"pin"`
}

// verify checks the PIN and, on success, signs the caller in exactly the way
// the bootstrap endpoint does.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.pins.Verify(r.Context(), req.Pin); err != nil {
		writePinError(w, err, "invalid_pin")
		return
	}

	bundle, user, err := h.sessions.IssueSession(r.Context(), clientMeta(r))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal_error", "could not start session")
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

type recoverRequest struct {
	Code   string `json:"code"`
	NewPin string `json:"newPin"`
}

func (h *Handler) recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	code, err := h.pins.RecoverWithBackupCode(r.Context(), req.Code, req.NewPin)
	if err != nil {
		writePinError(w, err, "invalid_code")
		return
	}
	api.JSON(w, http.StatusOK, backupCodeResponse{BackupCode: code})
}

type changeRequest struct {
	CurrentPin string `json:"currentPin"`
	NewPin     string `json:"newPin"`
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.pins.ChangePin(r.Context(), req.CurrentPin, req.NewPin); err != nil {
		writePinError(w, err, "invalid_pin")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type backupCodeRequest struct {
	Pin string `json:"pin"`
}

func (h *Handler) backupCode(w http.ResponseWriter, r *http.Request) {
	var req backupCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	code, err := h.pins.RegenerateBackupCode(r.Context(), req.Pin)
	if err != nil {
		writePinError(w, err, "invalid_pin")
		return
	}
	api.JSON(w, http.StatusOK, backupCodeResponse{BackupCode: code})
}

// writePinError maps service errors onto the uniform envelope. mismatchCode
// distinguishes a wrong PIN from a wrong backup code.
func writePinError(w http.ResponseWriter, err error, mismatchCode string) {
	var locked *service.LockedError
	var invalid *service.InvalidPinError
	switch {
	case errors.As(err, &locked):
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{
			Error:      "locked",
			Message:    "too many failed attempts, try again later",
			RetryAfter: locked.RetryAfter,
		})
	case errors.As(err, &invalid):
		n := invalid.AttemptsRemaining
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{
			Error:             mismatchCode,
			Message:           "verification failed",
			AttemptsRemaining: &n,
		})
	case errors.Is(err, service.ErrPinFormat):
		api.Error(w, http.StatusBadRequest, "invalid_pin_format", "PIN must be exactly 6 digits")
	case errors.Is(err, service.ErrNotConfigured):
		api.Error(w, http.StatusBadRequest, "pin_not_configured", "no PIN has been set up")
	case errors.Is(err, service.ErrAlreadyConfigured):
		api.Error(w, http.StatusConflict, "already_configured", "a PIN is already configured")
	default:
		api.Error(w, http.StatusInternalServerError, "internal_error", "pin operation failed")
	}
}

func clientMeta(r *http.Request) sessiondomain.ClientMeta {
	return sessiondomain.ClientMeta{UserAgent: r.UserAgent(), IP: middleware.ClientIP(r)}
}

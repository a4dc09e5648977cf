// Package server composes the HTTP surface of the trust core.
package server

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/moneywright/moneywright/internal/audit"
	healthhandler "github.com/moneywright/moneywright/internal/health/handler"
	identityhandler "github.com/moneywright/moneywright/internal/identity/handler"
	pinhandler "github.com/moneywright/moneywright/internal/pin/handler"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	sessionhandler "github.com/moneywright/moneywright/internal/session/handler"
	userhandler "github.com/moneywright/moneywright/internal/user/handler"
	userrepo "github.com/moneywright/moneywright/internal/user/repository"
)

// Deps holds the dependencies the HTTP surface is built from.
//
// Route → handler mapping:
//   - /api/health              → internal/health/handler
//   - /api/auth/google/*,local → internal/identity/handler
//   - /api/auth/refresh,logout,session,sessions → internal/session/handler
//   - /api/auth/pin/*          → internal/pin/handler
//   - /api/auth/account        → internal/user/handler
type Deps struct {
	// Sessions serves refresh, logout, the session probe, and session
	// management. Required.
	Sessions sessionhandler.SessionService
	// Users resolves accounts for auth responses and serves deletion. Required.
	Users userrepo.Repository
	// Audit records account lifecycle events. Required.
	Audit audit.Recorder
	// Google serves the federation routes. Nil outside google mode; the
	// routes then answer 403 feature_disabled.
	Google identityhandler.GoogleExchange
	// Local serves the bootstrap route. Nil outside local mode.
	Local identityhandler.LocalBootstrap
	// Pins serves the PIN routes. Nil outside local mode.
	Pins pinhandler.PinService
	// PinSessions signs the caller in after a verified PIN. Nil outside
	// local mode.
	PinSessions pinhandler.SessionIssuer
	// DB is pinged by the health probe (e.g. *sql.DB). If nil the probe
	// skips the ping.
	DB healthhandler.Pinger
	// Cookies configures how session credentials travel to browsers. Required.
	Cookies *cookies.Config
	// Auth guards the authenticated routes. Required.
	Auth *middleware.Authenticator
}

// New mounts every route on one mux and wraps it with OTel HTTP
// instrumentation, so each request carries a server span and the standard
// http metrics.
func New(deps Deps) http.Handler {
	mux := http.NewServeMux()
	healthhandler.New(deps.DB).Register(mux)
	identityhandler.New(deps.Google, deps.Local, deps.Cookies).Register(mux)
	sessionhandler.New(deps.Sessions, deps.Users, deps.Cookies, deps.Auth).Register(mux)
	pinhandler.New(deps.Pins, deps.PinSessions, deps.Cookies, deps.Auth).Register(mux)
	userhandler.New(deps.Users, deps.Audit, deps.Cookies, deps.Auth).Register(mux)
	return otelhttp.NewHandler(mux, "moneywright.http")
}

package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moneywright/moneywright/internal/security"
	"github.com/moneywright/moneywright/internal/server/api"
	"github.com/moneywright/moneywright/internal/server/cookies"
)

const bearerPrefix = "bearer "

// Rejection codes returned in the error body so clients can tell "log in
// again" apart from "call refresh".
const (
	RejectNoToken        = "no_token"
	RejectInvalidToken   = "invalid_token"
	RejectInvalidSession = "invalid_session"
)

// TokenVerifier is the token surface the authenticator needs.
type TokenVerifier interface {
	ValidateAccess(token string) (*security.TokenClaims, error)
}

// Authenticator makes the per-request authentication decision. It is
// stateless: signature, expiry, token type, and fingerprint binding are
// checked; revocation is enforced at rotation time.
type Authenticator struct {
	tokens      TokenVerifier
	cookies     *cookies.Config
	localBypass func() bool
	localUserID string
	metrics     *authMetrics
}

// NewAuthenticator returns an Authenticator verifying with tokens and
// reading cookies per cookieCfg. localBypass reports whether requests may
// skip credential checks entirely (local mode before a PIN is configured);
// nil disables the bypass. localUserID is the principal installed when the
// bypass fires.
func NewAuthenticator(tokens TokenVerifier, cookieCfg *cookies.Config, localBypass func() bool, localUserID string) *Authenticator {
	return &Authenticator{
		tokens:      tokens,
		cookies:     cookieCfg,
		localBypass: localBypass,
		localUserID: localUserID,
		metrics:     newAuthMetrics(),
	}
}

// authenticate runs the decision procedure and returns the principal, or a
// rejection code when the request cannot be tied to a session.
func (a *Authenticator) authenticate(r *http.Request) (Principal, string) {
	if a.localBypass != nil && a.localBypass() {
		// Convenience mode for a single-user deployment without a PIN.
		// Not a security boundary.
		return Principal{UserID: a.localUserID}, ""
	}
	token := bearerToken(r)
	if token == "" {
		if v, ok := a.cookies.ReadAccessToken(r); ok {
			token = v
		}
	}
	if token == "" {
		return Principal{}, RejectNoToken
	}
	claims, err := a.tokens.ValidateAccess(token)
	if err != nil {
		return Principal{}, RejectInvalidToken
	}
	fingerprint := strings.TrimSpace(r.Header.Get("X-Fingerprint"))
	if fingerprint == "" {
		if v, ok := a.cookies.ReadFingerprint(r); ok {
			fingerprint = v
		}
	}
	if fingerprint == "" || !security.SecretHashEqual(fingerprint, claims.FingerprintHash) {
		return Principal{}, RejectInvalidSession
	}
	return Principal{UserID: claims.Subject, SessionID: claims.SessionID}, ""
}

// RequireAuth rejects unauthenticated requests with 401 and the rejection
// code; authenticated requests proceed with the principal in context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		p, reject := a.authenticate(r)
		if reject != "" {
			a.metrics.record(r.Context(), reject, time.Since(start))
			api.Error(w, http.StatusUnauthorized, reject, rejectMessage(reject))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		a.metrics.record(r.Context(), "authenticated", time.Since(start))
	})
}

// OptionalAuth authenticates when possible and degrades to anonymous (no
// principal in context) on any failure.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		outcome := "authenticated"
		if p, reject := a.authenticate(r); reject == "" {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		} else {
			outcome = reject
		}
		next.ServeHTTP(w, r)
		a.metrics.record(r.Context(), outcome, time.Since(start))
	})
}

func rejectMessage(code string) string {
	switch code {
	case RejectNoToken:
		return "missing access token"
	case RejectInvalidToken:
		return "invalid or expired access token"
	default:
		return "session binding check failed"
	}
}

// bearerToken returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func bearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP, or the
// connection's remote address, or "unknown". Advisory only; recorded on
// sessions and audit events.
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-Ip")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

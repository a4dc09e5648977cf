// Package cookies centralizes the auth cookie contract: which cookies exist,
// their flags, and their lifetimes.
package cookies

import (
	"net/http"
	"strings"
	"time"
)

// Base cookie names. When the deployment is https the names gain the
// __Host- prefix, which browsers only accept with Secure, Path=/ and no
// Domain, pinning the cookies to this exact origin.
const (
	accessName      = "mw_access_token"
	refreshName     = "mw_refresh_token"
	fingerprintName = "mw_fingerprint"
	hintName        = "mw_session"

	hostPrefix = "__Host-"
)

// Config carries the deployment-dependent cookie policy. Secure follows the
// scheme of PUBLIC_URL; the TTLs mirror the token lifetimes.
type Config struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c *Config) name(base string) string {
	if c.Secure {
		return hostPrefix + base
	}
	return base
}

func (c *Config) set(w http.ResponseWriter, base, value string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(base),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Set writes the full cookie set for an authenticated client: the token pair
// and fingerprint as httpOnly cookies, plus the mw_session hint readable by
// page scripts so they can skip the identity probe when logged out.
func (c *Config) Set(w http.ResponseWriter, accessToken, refreshToken, fingerprint string) {
	c.set(w, accessName, accessToken, int(c.AccessTTL.Seconds()), true)
	c.set(w, refreshName, refreshToken, int(c.RefreshTTL.Seconds()), true)
	c.set(w, fingerprintName, fingerprint, int(c.RefreshTTL.Seconds()), true)
	c.set(w, hintName, "1", int(c.RefreshTTL.Seconds()), false)
}

// Clear expires every auth cookie.
func (c *Config) Clear(w http.ResponseWriter) {
	for _, base := range []string{accessName, refreshName, fingerprintName} {
		c.set(w, base, "", -1, true)
	}
	c.set(w, hintName, "", -1, false)
}

func (c *Config) read(r *http.Request, base string) (string, bool) {
	cookie, err := r.Cookie(c.name(base))
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

// ReadAccessToken returns the access token cookie value when present.
func (c *Config) ReadAccessToken(r *http.Request) (string, bool) {
	return c.read(r, accessName)
}

// ReadRefreshToken returns the refresh token cookie value when present.
func (c *Config) ReadRefreshToken(r *http.Request) (string, bool) {
	return c.read(r, refreshName)
}

// ReadFingerprint returns the fingerprint cookie value when present.
func (c *Config) ReadFingerprint(r *http.Request) (string, bool) {
	return c.read(r, fingerprintName)
}

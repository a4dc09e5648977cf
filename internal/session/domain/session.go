package domain

import "time"

// Session is the unit of trust: one row per authenticated client. The row
// stores only hashes of the refresh token and fingerprint secret; the raw
// values live with the client.
type Session struct {
	ID                string
	UserID            string
	RefreshHash       string     // SHA-256 hex of the current refresh JWT
	RefreshJTI        string     // jti of the current refresh token; rotation swaps it atomically
	FingerprintHash   string     // SHA-256 hex of the current fingerprint secret
	ExpiresAt         time.Time  // rolling expiry, advanced by rotation
	AbsoluteExpiresAt time.Time  // hard ceiling fixed at creation; rotation never extends past it
	RevokedAt         *time.Time // nil when not revoked; terminal once set
	LastUsedAt        *time.Time
	UserAgent         string // advisory client metadata
	IP                string // advisory client metadata
	CreatedAt         time.Time
}

// IsLive reports whether the session is valid at the given instant:
// not revoked, rolling expiry in the future, absolute expiry in the future.
func (s *Session) IsLive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt) && now.Before(s.AbsoluteExpiresAt)
}

// ClientMeta carries advisory request metadata recorded on the session row
// and on audit events. Never used for authentication decisions.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// Rotation holds the replacement credential state written by a successful
// refresh. The repository applies it only when the previous refresh jti is
// still current.
type Rotation struct {
	RefreshHash     string
	RefreshJTI      string
	FingerprintHash string
	ExpiresAt       time.Time
	LastUsedAt      time.Time
}

package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/moneywright/moneywright/internal/audit"
	auditdomain "github.com/moneywright/moneywright/internal/audit/domain"
	"github.com/moneywright/moneywright/internal/security"
	"github.com/moneywright/moneywright/internal/session/domain"
	"github.com/moneywright/moneywright/internal/session/repository"
)

// Sentinel errors for the session manager; handlers map them to HTTP codes.
var (
	// ErrSessionInvalid means the presented credentials cannot be tied to a
	// live session. The client must authenticate again.
	ErrSessionInvalid = errors.New("session invalid or expired")
	// ErrRefreshReuse means a refresh token that already rotated was
	// presented again. The session is revoked before this is returned.
	ErrRefreshReuse = errors.New("refresh token reuse detected; session revoked")
	// ErrSessionNotFound means the session does not exist or is not owned by
	// the calling user.
	ErrSessionNotFound = errors.New("session not found")
)

const (
	// fingerprintBytes sizes the random fingerprint secret handed to clients.
	fingerprintBytes = 32
	// AuditRetention bounds how long audit events are kept. Cleanup prunes
	// older rows; cmd/worker uses the same cutoff.
	AuditRetention = 90 * 24 * time.Hour
)

// TokenBundle is everything a client needs after authentication: the signed
// token pair, the raw fingerprint secret (returned exactly once, only its
// hash is stored), and the access token lifetime in seconds.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	Fingerprint  string
	ExpiresIn    int64
	SessionID    string
	UserID       string
}

// SessionInfo is the read-only view of a live session returned by
// ListSessions. Current marks the caller's own session.
type SessionInfo struct {
	ID         string
	UserAgent  string
	IP         string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	Current    bool
}

// AuditPruner is the retention surface cleanup uses.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Manager owns the session lifecycle: issuance, rotation with reuse
// detection, revocation, listing, and expiry cleanup.
type Manager struct {
	sessions    repository.Repository
	audit       audit.Recorder
	pruner      AuditPruner
	tokens      *security.TokenProvider
	absoluteTTL time.Duration
	now         func() time.Time
}

// NewManager returns a Manager with the given dependencies. absoluteTTL is
// the hard session lifetime ceiling fixed at creation; rotation never
// extends past it. pruner may be nil to skip audit retention during cleanup.
func NewManager(
	sessions repository.Repository,
	auditLog audit.Recorder,
	pruner AuditPruner,
	tokens *security.TokenProvider,
	absoluteTTL time.Duration,
) *Manager {
	return &Manager{
		sessions:    sessions,
		audit:       auditLog,
		pruner:      pruner,
		tokens:      tokens,
		absoluteTTL: absoluteTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession mints a new session for the user: fresh session id,
// fingerprint secret, and signed token pair. Only hashes of the refresh
// token and fingerprint are persisted; the raw values travel to the client
// exactly once in the returned bundle.
func (m *Manager) CreateSession(ctx context.Context, userID string, meta domain.ClientMeta) (*TokenBundle, error) {
	sessionID := uuid.New().String()
	fingerprint, err := security.NewSecret(fingerprintBytes)
	if err != nil {
		return nil, err
	}
	fpHash := security.HashSecret(fingerprint)
	refreshToken, jti, _, err := m.tokens.IssueRefresh(sessionID, userID, fpHash)
	if err != nil {
		return nil, err
	}
	accessToken, _, _, err := m.tokens.IssueAccess(sessionID, userID, fpHash)
	if err != nil {
		return nil, err
	}
	now := m.now()
	sess := &domain.Session{
		ID:                sessionID,
		UserID:            userID,
		RefreshHash:       security.HashSecret(refreshToken),
		RefreshJTI:        jti,
		FingerprintHash:   fpHash,
		ExpiresAt:         now.Add(m.tokens.RefreshTTL()),
		AbsoluteExpiresAt: now.Add(m.absoluteTTL),
		LastUsedAt:        &now,
		UserAgent:         meta.UserAgent,
		IP:                meta.IP,
		CreatedAt:         now,
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.audit.Record(ctx, userID, auditdomain.ActionSessionCreated, sessionID, meta.IP, meta.UserAgent)
	return &TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Fingerprint:  fingerprint,
		ExpiresIn:    int64(m.tokens.AccessTTL().Seconds()),
		SessionID:    sessionID,
		UserID:       userID,
	}, nil
}

// RefreshSession validates the presented refresh token and fingerprint,
// rotates the session's credentials, and returns a fresh bundle.
//
// The fingerprint is checked against the hash embedded in the token itself,
// so presenting a token without its paired secret fails closed without
// touching the session. A token whose jti or hash is no longer the session's
// current one proves the credential was used twice; the session is revoked
// and ErrRefreshReuse returned. The rotation itself is a conditional update
// keyed on the previous jti, so when two carriers of the same token race,
// exactly one wins and the loser trips the same revocation.
func (m *Manager) RefreshSession(ctx context.Context, refreshToken, presentedFingerprint string, meta domain.ClientMeta) (*TokenBundle, error) {
	if refreshToken == "" {
		return nil, ErrSessionInvalid
	}
	claims, err := m.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	sess, err := m.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if sess == nil || !sess.IsLive(now) {
		return nil, ErrSessionInvalid
	}
	if !security.SecretHashEqual(presentedFingerprint, claims.FingerprintHash) {
		return nil, ErrSessionInvalid
	}
	if claims.ID != sess.RefreshJTI || !security.SecretHashEqual(refreshToken, sess.RefreshHash) {
		m.revokeOnReuse(ctx, sess, now, meta)
		return nil, ErrRefreshReuse
	}

	fingerprint, err := security.NewSecret(fingerprintBytes)
	if err != nil {
		return nil, err
	}
	fpHash := security.HashSecret(fingerprint)
	newRefresh, newJTI, _, err := m.tokens.IssueRefresh(sess.ID, sess.UserID, fpHash)
	if err != nil {
		return nil, err
	}
	rot := domain.Rotation{
		RefreshHash:     security.HashSecret(newRefresh),
		RefreshJTI:      newJTI,
		FingerprintHash: fpHash,
		ExpiresAt:       minTime(now.Add(m.tokens.RefreshTTL()), sess.AbsoluteExpiresAt),
		LastUsedAt:      now,
	}
	ok, err := m.sessions.Rotate(ctx, sess.ID, claims.ID, rot)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.revokeOnReuse(ctx, sess, now, meta)
		return nil, ErrRefreshReuse
	}
	accessToken, _, _, err := m.tokens.IssueAccess(sess.ID, sess.UserID, fpHash)
	if err != nil {
		return nil, err
	}
	m.audit.Record(ctx, sess.UserID, auditdomain.ActionSessionRefreshed, sess.ID, meta.IP, meta.UserAgent)
	return &TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		Fingerprint:  fingerprint,
		ExpiresIn:    int64(m.tokens.AccessTTL().Seconds()),
		SessionID:    sess.ID,
		UserID:       sess.UserID,
	}, nil
}

// revokeOnReuse kills the session after a stale credential was presented.
// Best-effort: the caller returns ErrRefreshReuse regardless.
func (m *Manager) revokeOnReuse(ctx context.Context, sess *domain.Session, now time.Time, meta domain.ClientMeta) {
	log.Printf("session: refresh reuse detected for session %s, revoking", sess.ID)
	if err := m.sessions.Revoke(ctx, sess.ID, now); err != nil {
		log.Printf("session: failed to revoke session %s after reuse: %v", sess.ID, err)
	}
	m.audit.Record(ctx, sess.UserID, auditdomain.ActionRefreshReuse, sess.ID, meta.IP, meta.UserAgent)
}

// RevokeSession marks the session revoked. Idempotent: revoking a revoked or
// missing session is a no-op.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) error {
	sess, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if err := m.sessions.Revoke(ctx, sessionID, m.now()); err != nil {
		return err
	}
	if sess.RevokedAt == nil {
		m.audit.Record(ctx, sess.UserID, auditdomain.ActionSessionRevoked, sessionID, "", "")
	}
	return nil
}

// RevokeByRefreshToken revokes the session a refresh token belongs to.
// Lets logout work from the refresh cookie alone when the access token has
// already expired. Returns ErrSessionInvalid if the token does not parse.
func (m *Manager) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrSessionInvalid
	}
	claims, err := m.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return ErrSessionInvalid
	}
	return m.RevokeSession(ctx, claims.SessionID)
}

// RevokeUserSession revokes the session only if it belongs to userID.
// Returns ErrSessionNotFound for missing or foreign sessions so existence is
// never leaked across users.
func (m *Manager) RevokeUserSession(ctx context.Context, userID, sessionID string) error {
	sess, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return ErrSessionNotFound
	}
	if err := m.sessions.Revoke(ctx, sessionID, m.now()); err != nil {
		return err
	}
	if sess.RevokedAt == nil {
		m.audit.Record(ctx, userID, auditdomain.ActionSessionRevoked, sessionID, "", "")
	}
	return nil
}

// RevokeOtherSessions revokes every live session of the user except the
// current one, so "log out everywhere else" cannot log the caller out.
// Returns the number of sessions revoked.
func (m *Manager) RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) (int64, error) {
	n, err := m.sessions.RevokeOthersByUser(ctx, userID, currentSessionID, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.audit.Record(ctx, userID, auditdomain.ActionSessionRevoked, "others", "", "")
	}
	return n, nil
}

// RevokeAllSessions revokes every live session of the user. Returns the
// number of sessions revoked.
func (m *Manager) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := m.sessions.RevokeAllByUser(ctx, userID, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.audit.Record(ctx, userID, auditdomain.ActionSessionRevoked, "all", "", "")
	}
	return n, nil
}

// ListSessions returns the user's live sessions, most recently used first,
// with the caller's session marked Current.
func (m *Manager) ListSessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	sessions, err := m.sessions.ListLiveByUser(ctx, userID, m.now())
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		lastUsed := s.CreatedAt
		if s.LastUsedAt != nil {
			lastUsed = *s.LastUsedAt
		}
		out = append(out, SessionInfo{
			ID:         s.ID,
			UserAgent:  s.UserAgent,
			IP:         s.IP,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: lastUsed,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.ID == currentSessionID,
		})
	}
	return out, nil
}

// CleanupExpiredSessions deletes sessions past their absolute expiry and
// prunes audit events past retention. Safe to run concurrently; every
// underlying statement is a single bounded DELETE.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	now := m.now()
	n, err := m.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if m.pruner != nil {
		if _, err := m.pruner.DeleteOlderThan(ctx, now.Add(-AuditRetention)); err != nil {
			return n, err
		}
	}
	return n, nil
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moneywright/moneywright/internal/db"
	"github.com/moneywright/moneywright/internal/session/domain"
)

// SQLRepository persists sessions through database/sql. The queries use ?
// placeholders and are rebound per dialect, so the same implementation serves
// the SQLite and Postgres deployments.
type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns a session repository backed by conn.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const sessionColumns = `id, user_id, refresh_hash, refresh_jti, fingerprint_hash,
	expires_at, absolute_expires_at, revoked_at, last_used_at, user_agent, ip, created_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.conn.QueryRowContext(ctx, r.conn.Rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Create persists the session. The session must have ID set.
func (r *SQLRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.UserID, s.RefreshHash, s.RefreshJTI, s.FingerprintHash,
		s.ExpiresAt, s.AbsoluteExpiresAt, timeToNullTime(s.RevokedAt),
		timeToNullTime(s.LastUsedAt), s.UserAgent, s.IP, s.CreatedAt)
	return err
}

// Rotate swaps the session's credential hashes, jti, and rolling expiry in a
// single conditional update keyed on the previous jti. Returns false when the
// jti was no longer current or the session was revoked, which is the signal
// for refresh-token reuse.
func (r *SQLRepository) Rotate(ctx context.Context, id, prevJTI string, rot domain.Rotation) (bool, error) {
	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE sessions
		 SET refresh_hash = ?, refresh_jti = ?, fingerprint_hash = ?, expires_at = ?, last_used_at = ?
		 WHERE id = ? AND refresh_jti = ? AND revoked_at IS NULL`),
		rot.RefreshHash, rot.RefreshJTI, rot.FingerprintHash, rot.ExpiresAt, rot.LastUsedAt,
		id, prevJTI)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke marks the session revoked. Idempotent: the WHERE clause skips rows
// already revoked so the original revocation time is never overwritten.
func (r *SQLRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`), at, id)
	return err
}

// RevokeAllByUser revokes every live session of the user and returns the count.
func (r *SQLRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`), at, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeOthersByUser revokes every live session of the user except exceptID.
func (r *SQLRepository) RevokeOthersByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error) {
	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND id <> ? AND revoked_at IS NULL`),
		at, userID, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListLiveByUser returns the user's live sessions, most recently used first.
func (r *SQLRepository) ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.conn.QueryContext(ctx, r.conn.Rebind(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ? AND absolute_expires_at > ?
		 ORDER BY COALESCE(last_used_at, created_at) DESC`),
		userID, now, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteExpired removes sessions past their absolute expiry.
func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`DELETE FROM sessions WHERE absolute_expires_at <= ?`), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s          domain.Session
		revokedAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshHash, &s.RefreshJTI, &s.FingerprintHash,
		&s.ExpiresAt, &s.AbsoluteExpiresAt, &revokedAt, &lastUsedAt, &s.UserAgent, &s.IP, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.RevokedAt = nullTimeToTime(revokedAt)
	s.LastUsedAt = nullTimeToTime(lastUsedAt)
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

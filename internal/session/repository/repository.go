package repository

import (
	"context"
	"time"

	"github.com/moneywright/moneywright/internal/session/domain"
)

// Repository defines persistence for sessions. All mutation is expressed as
// atomic single-row updates; Rotate is the only conditional one.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Rotate applies rot to the session only if prevJTI is still the current
	// refresh jti and the session is not revoked. Returns false when no row
	// matched; the caller must treat that as refresh-token reuse.
	Rotate(ctx context.Context, id, prevJTI string, rot domain.Rotation) (bool, error)
	// Revoke marks the session revoked at the given instant. Idempotent: an
	// already-revoked session keeps its original revocation time.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAllByUser revokes every live session of the user. Returns the
	// number of sessions newly revoked.
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// RevokeOthersByUser revokes every live session of the user except
	// exceptID, so "log out everywhere else" cannot self-lock.
	RevokeOthersByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error)
	// ListLiveByUser returns the user's live sessions at the given instant,
	// most recently used first.
	ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// DeleteExpired removes sessions past their absolute expiry. Returns the
	// number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

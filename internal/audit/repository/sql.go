package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/moneywright/moneywright/internal/audit/domain"
	"github.com/moneywright/moneywright/internal/db"
)

// SQLRepository persists audit events through database/sql, dialect-agnostic
// via placeholder rebinding.
type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns an audit event repository backed by conn.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// Create persists the event. The event must have ID set.
func (r *SQLRepository) Create(ctx context.Context, e *domain.Event) error {
	uid := sql.NullString{String: e.UserID, Valid: e.UserID != ""}
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`INSERT INTO audit_events (id, user_id, action, detail, ip, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		e.ID, uid, e.Action, e.Detail, e.IP, e.UserAgent, e.CreatedAt)
	return err
}

// DeleteOlderThan removes events created before cutoff.
func (r *SQLRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`DELETE FROM audit_events WHERE created_at < ?`), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

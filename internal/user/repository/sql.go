package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/moneywright/moneywright/internal/db"
	"github.com/moneywright/moneywright/internal/user/domain"
)

// SQLRepository persists users through database/sql, dialect-agnostic via
// placeholder rebinding.
type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns a user repository backed by conn.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.conn.QueryRowContext(ctx, r.conn.Rebind(
		`SELECT id, google_id, email, display_name, created_at FROM users WHERE id = ?`), id)
	return scanUser(row)
}

// GetByGoogleID returns the user federated with the given Google subject id,
// or nil if not found.
func (r *SQLRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	row := r.conn.QueryRowContext(ctx, r.conn.Rebind(
		`SELECT id, google_id, email, display_name, created_at FROM users WHERE google_id = ?`), googleID)
	return scanUser(row)
}

// Create persists the user. The user must have ID set.
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	gid := sql.NullString{String: u.GoogleID, Valid: u.GoogleID != ""}
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`INSERT INTO users (id, google_id, email, display_name, created_at) VALUES (?, ?, ?, ?, ?)`),
		u.ID, gid, u.Email, u.DisplayName, u.CreatedAt)
	return err
}

// Delete removes the user. Sessions and audit events cascade at the schema
// level.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(`DELETE FROM users WHERE id = ?`), id)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u   domain.User
		gid sql.NullString
	)
	err := row.Scan(&u.ID, &gid, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if gid.Valid {
		u.GoogleID = gid.String
	}
	return &u, nil
}

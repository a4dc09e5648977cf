package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moneywright/moneywright/internal/db"
	"github.com/moneywright/moneywright/internal/pin/domain"
)

// SQLRepository persists the PIN credential through database/sql. Queries use
// ? placeholders rebound per dialect; RETURNING is available on both SQLite
// and Postgres, which keeps the counter updates to a single round trip.
type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns a PIN credential repository backed by conn.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// Get returns the credential row, or nil if PIN auth has not been set up.
func (r *SQLRepository) Get(ctx context.Context) (*domain.Credential, error) {
	row := r.conn.QueryRowContext(ctx, r.conn.Rebind(
		`SELECT id, pin_hash, backup_code_hash, failed_attempts, locked_until, lockout_count,
		        created_at, updated_at
		 FROM pin_credentials WHERE id = 1`))

	var (
		c           domain.Credential
		lockedUntil sql.NullTime
	)
	err := row.Scan(&c.ID, &c.PinHash, &c.BackupCodeHash, &c.FailedAttempts, &lockedUntil,
		&c.LockoutCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		c.LockedUntil = &t
	}
	return &c, nil
}

// Create inserts the singleton row. The primary key and its CHECK constraint
// reject a second insert.
func (r *SQLRepository) Create(ctx context.Context, c *domain.Credential) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`INSERT INTO pin_credentials (id, pin_hash, backup_code_hash, failed_attempts,
		                              locked_until, lockout_count, created_at, updated_at)
		 VALUES (1, ?, ?, 0, NULL, 0, ?, ?)`),
		c.PinHash, c.BackupCodeHash, c.CreatedAt, c.UpdatedAt)
	return err
}

// IncrementFailure bumps the failure counter atomically and reports the
// resulting counts.
func (r *SQLRepository) IncrementFailure(ctx context.Context, at time.Time) (int, int, error) {
	row := r.conn.QueryRowContext(ctx, r.conn.Rebind(
		`UPDATE pin_credentials SET failed_attempts = failed_attempts + 1, updated_at = ?
		 WHERE id = 1
		 RETURNING failed_attempts, lockout_count`), at)

	var attempts, lockouts int
	if err := row.Scan(&attempts, &lockouts); err != nil {
		return 0, 0, err
	}
	return attempts, lockouts, nil
}

// ApplyLockout arms the lockout unless one is already active, so two
// attempts crossing the threshold together escalate the backoff only once.
func (r *SQLRepository) ApplyLockout(ctx context.Context, until, at time.Time) (bool, error) {
	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE pin_credentials
		 SET locked_until = ?, lockout_count = lockout_count + 1, failed_attempts = 0, updated_at = ?
		 WHERE id = 1 AND (locked_until IS NULL OR locked_until <= ?)`),
		until, at, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearFailures resets both counters after a successful verification.
func (r *SQLRepository) ClearFailures(ctx context.Context, at time.Time) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE pin_credentials
		 SET failed_attempts = 0, lockout_count = 0, locked_until = NULL, updated_at = ?
		 WHERE id = 1`), at)
	return err
}

// ReplaceCredential swaps both hashes and resets the lockout state in one
// statement, making the old backup code unusable the moment the new
// credential lands.
func (r *SQLRepository) ReplaceCredential(ctx context.Context, pinHash, backupCodeHash string, at time.Time) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE pin_credentials
		 SET pin_hash = ?, backup_code_hash = ?, failed_attempts = 0, lockout_count = 0,
		     locked_until = NULL, updated_at = ?
		 WHERE id = 1`),
		pinHash, backupCodeHash, at)
	return err
}

// UpdatePinHash swaps the PIN hash.
func (r *SQLRepository) UpdatePinHash(ctx context.Context, pinHash string, at time.Time) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE pin_credentials SET pin_hash = ?, updated_at = ? WHERE id = 1`), pinHash, at)
	return err
}

// UpdateBackupCodeHash swaps the backup-code hash.
func (r *SQLRepository) UpdateBackupCodeHash(ctx context.Context, backupCodeHash string, at time.Time) error {
	_, err := r.conn.ExecContext(ctx, r.conn.Rebind(
		`UPDATE pin_credentials SET backup_code_hash = ?, updated_at = ? WHERE id = 1`), backupCodeHash, at)
	return err
}

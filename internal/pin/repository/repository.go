package repository

import (
	"context"
	"time"

	"github.com/moneywright/moneywright/internal/pin/domain"
)

// Repository defines persistence for the singleton PIN credential. The
// counter updates are single statements so concurrent verification attempts
// cannot lose failures or double-apply a lockout.
type Repository interface {
	// Get returns the credential, or nil if none has been set up.
	Get(ctx context.Context) (*domain.Credential, error)

	// Create inserts the credential row. Fails if one already exists.
	Create(ctx context.Context, c *domain.Credential) error

	// IncrementFailure bumps failed_attempts by one and returns the new
	// failure count together with the current lockout count.
	IncrementFailure(ctx context.Context, at time.Time) (attempts, lockouts int, err error)

	// ApplyLockout sets locked_until, bumps lockout_count, and zeroes
	// failed_attempts, but only when no lockout is currently active.
	// Returns false when a concurrent attempt already applied one.
	ApplyLockout(ctx context.Context, until, at time.Time) (bool, error)

	// ClearFailures zeroes failed_attempts and lockout_count after a
	// successful verification.
	ClearFailures(ctx context.Context, at time.Time) error

	// ReplaceCredential swaps both hashes and resets all lockout state in
	// one statement. Used by backup-code recovery.
	ReplaceCredential(ctx context.Context, pinHash, backupCodeHash string, at time.Time) error

	// UpdatePinHash swaps only the PIN hash.
	UpdatePinHash(ctx context.Context, pinHash string, at time.Time) error

	// UpdateBackupCodeHash swaps only the backup-code hash.
	UpdateBackupCodeHash(ctx context.Context, backupCodeHash string, at time.Time) error
}

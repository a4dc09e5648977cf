package domain

import "time"

// Credential is the local PIN credential (pin_credentials table). The table
// holds at most one row, enforced by CHECK (id = 1).
type Credential struct {
	ID             int
	PinHash        string
	BackupCodeHash string
	FailedAttempts int
	LockedUntil    *time.Time
	LockoutCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the credential is under an active lockout at now.
func (c *Credential) Locked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

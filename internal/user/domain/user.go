package domain

import (
	"errors"
	"time"
)

// User is the identity anchor. A row is born on first successful Google
// federation or on first local-mode bootstrap, and is never mutated by the
// trust core afterwards except on deletion cascade.
type User struct {
	ID          string
	GoogleID    string // Google subject id; empty for local-mode users
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

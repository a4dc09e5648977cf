package domain

import "time"

// Event is one security-relevant action taken against the identity core.
type Event struct {
	ID        string
	UserID    string // empty when the action has no resolved user
	Action    string
	Detail    string
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Audit actions. Security signals (refresh_reuse, pin_lockout) always get a
// row; the rest record normal lifecycle transitions.
const (
	ActionUserCreated          = "user_created"
	ActionSessionCreated       = "session_created"
	ActionSessionRefreshed     = "session_refreshed"
	ActionSessionRevoked       = "session_revoked"
	ActionRefreshReuse         = "refresh_reuse"
	ActionPinSetup             = "pin_setup"
	ActionPinLockout           = "pin_lockout"
	ActionPinRecovered         = "pin_recovered"
	ActionPinChanged           = "pin_changed"
	ActionPinBackupRegenerated = "pin_backup_regenerated"
	ActionAccountDeleted       = "account_deleted"
)

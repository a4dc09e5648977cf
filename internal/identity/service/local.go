package service

import (
	"context"
	"errors"
	"time"

	"github.com/moneywright/moneywright/internal/audit"
	auditdomain "github.com/moneywright/moneywright/internal/audit/domain"
	sessiondomain "github.com/moneywright/moneywright/internal/session/domain"
	sessionservice "github.com/moneywright/moneywright/internal/session/service"
	userdomain "github.com/moneywright/moneywright/internal/user/domain"
	userrepo "github.com/moneywright/moneywright/internal/user/repository"
)

// LocalUserID is the fixed account id used by single-user local deployments.
// The id is constant so the first-run insert race is benign.
const LocalUserID = "00000000-0000-0000-0000-000000000001"

const (
	localUserEmail = "local@moneywright.local"
	localUserName  = "Local User"
)

// ErrPinRequired means a PIN is configured, so the unauthenticated bootstrap
// path is closed and the caller must verify through the PIN service.
var ErrPinRequired = errors.New("pin verification required")

// Local issues sessions for the single-user local deployment.
type Local struct {
	users         userrepo.Repository
	sessions      SessionCreator
	pinConfigured func() bool
	audit         audit.Recorder
}

// NewLocal returns a Local bootstrapper. pinConfigured reports whether a PIN
// credential exists; nil means never.
func NewLocal(users userrepo.Repository, sessions SessionCreator, pinConfigured func() bool, auditLog audit.Recorder) *Local {
	return &Local{
		users:         users,
		sessions:      sessions,
		pinConfigured: pinConfigured,
		audit:         auditLog,
	}
}

// Bootstrap issues a session for the local user, creating the account on
// first run. Refused once a PIN is configured.
func (l *Local) Bootstrap(ctx context.Context, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, *userdomain.User, error) {
	if l.pinConfigured != nil && l.pinConfigured() {
		return nil, nil, ErrPinRequired
	}
	return l.IssueSession(ctx, meta)
}

// IssueSession finds or creates the local user and mints a session. The PIN
// handler calls this after a successful verification; Bootstrap calls it
// while no PIN exists.
func (l *Local) IssueSession(ctx context.Context, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, *userdomain.User, error) {
	user, err := l.users.GetByID(ctx, LocalUserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		user = &userdomain.User{
			ID:          LocalUserID,
			Email:       localUserEmail,
			DisplayName: localUserName,
			CreatedAt:   time.Now().UTC(),
		}
		if err := l.users.Create(ctx, user); err != nil {
			// A concurrent bootstrap may have won the insert.
			existing, getErr := l.users.GetByID(ctx, LocalUserID)
			if getErr != nil || existing == nil {
				return nil, nil, err
			}
			user = existing
		} else {
			l.audit.Record(ctx, user.ID, auditdomain.ActionUserCreated, user.Email, meta.IP, meta.UserAgent)
		}
	}
	bundle, err := l.sessions.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}
	return bundle, user, nil
}

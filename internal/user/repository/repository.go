package repository

import (
	"context"

	"github.com/moneywright/moneywright/internal/user/domain"
)

// Repository defines persistence for users. Users are never updated in
// place; the row is created once and removed only by account deletion,
// which cascades to sessions and audit events.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
}

package repository

import (
	"context"
	"time"

	"github.com/moneywright/moneywright/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// DeleteOlderThan removes events created before cutoff and returns the
	// number of rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

package alert

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, a *Alert) error
	// Save persists lifecycle state; the trigger snapshot is never rewritten.
	// It fails with ErrAlreadyResolved unless the stored status CanBecome a.Status.
	Save(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id string) (*Alert, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Alert, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Alert, error)
	// ListRedeliverable returns unexpired pending alerts with a channel under maxAttempts.
	ListRedeliverable(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*Alert, error)
}

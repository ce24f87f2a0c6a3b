package kafka

import (
	"context"

	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
)

type AlertEvents interface {
	PublishAlertCreated(ctx context.Context, ev outbox.AlertEvent) error
	PublishAlertResolved(ctx context.Context, ev outbox.AlertEvent) error
}

// CheckRequest asks for an out-of-cycle check. Exactly one field is set.
type CheckRequest struct {
	ItemID string
	UserID string
}

package outbox

import (
	"context"
	"time"
)

type Status string

type Kind int

const (
	KindAlertCreated  Kind = 1
	KindAlertResolved Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindAlertCreated:
		return "alert.created"
	case KindAlertResolved:
		return "alert.resolved"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	// Attempts counts picks, including the current one.
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)

// AlertEvent is the outbox payload for both alert kinds.
type AlertEvent struct {
	AlertID    string    `json:"alert_id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	Price      float64   `json:"price"`
	OccurredAt time.Time `json:"occurred_at"`
}

package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/kafka"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	EventAlertCreated  = "alert.created"
	EventAlertResolved = "alert.resolved"
)

type AlertEventsKafka struct {
	p *Producer
}

func NewAlertEventsKafka(p *Producer) *AlertEventsKafka { return &AlertEventsKafka{p: p} }

var _ kafka.AlertEvents = (*AlertEventsKafka)(nil)

func (e *AlertEventsKafka) PublishAlertCreated(ctx context.Context, ev outbox.AlertEvent) error {
	return e.publish(ctx, EventAlertCreated, ev)
}

func (e *AlertEventsKafka) PublishAlertResolved(ctx context.Context, ev outbox.AlertEvent) error {
	return e.publish(ctx, EventAlertResolved, ev)
}

func (e *AlertEventsKafka) publish(ctx context.Context, name string, ev outbox.AlertEvent) error {
	msg, err := AlertEventStruct(name, ev)
	if err != nil {
		return err
	}
	return e.p.Publish(ctx, ev.ItemID, name, msg)
}

// AlertEventStruct is the wire form of an alert event.
func AlertEventStruct(name string, ev outbox.AlertEvent) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"event":       name,
		"alert_id":    ev.AlertID,
		"user_id":     ev.UserID,
		"item_id":     ev.ItemID,
		"type":        ev.Type,
		"priority":    ev.Priority,
		"status":      ev.Status,
		"price":       ev.Price,
		"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return s, nil
}

// CheckRequestFromStruct reads a check request published as {item_id} or {user_id}.
func CheckRequestFromStruct(s *structpb.Struct) (kafka.CheckRequest, error) {
	f := s.GetFields()
	req := kafka.CheckRequest{
		ItemID: f["item_id"].GetStringValue(),
		UserID: f["user_id"].GetStringValue(),
	}
	if (req.ItemID == "") == (req.UserID == "") {
		return req, fmt.Errorf("check request needs exactly one of item_id, user_id")
	}
	return req, nil
}

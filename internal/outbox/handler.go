package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/kafka"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/obs"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricewatch_outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// AlertEvent is the payload stored for both alert kinds.
func AlertEvent(a alert.Alert, at time.Time) outbox.AlertEvent {
	return outbox.AlertEvent{
		AlertID:    a.ID,
		UserID:     a.UserID,
		ItemID:     a.ItemID,
		Type:       string(a.Type),
		Priority:   string(a.Priority),
		Status:     string(a.Status),
		Price:      a.Snapshot.CurrentPrice,
		OccurredAt: at.UTC(),
	}
}

// EnqueueAlert stores an alert event; it joins the caller's transaction when one is open.
// An alert produces at most one message per kind.
func EnqueueAlert(ctx context.Context, repo outbox.Repository, kind outbox.Kind, a alert.Alert, at time.Time) error {
	b, err := json.Marshal(AlertEvent(a, at))
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	key := kind.String() + ":" + a.ID
	if err := repo.Enqueue(ctx, key, kind, b); err != nil {
		return fmt.Errorf("outbox enqueue: %w", err)
	}
	return nil
}

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	wrapped := WrapKindHandler(h, pol)
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := wrapped(ctx, data)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			obs.Fail(span, err, kind)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

func decodeEvent(data []byte) (outbox.AlertEvent, error) {
	var ev outbox.AlertEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal alert payload: %w", err)
	}
	return ev, nil
}

func MakeGlobalOutboxHandler(pub kafka.AlertEvents, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindAlertCreated:
			base := func(ctx context.Context, data []byte) error {
				ev, err := decodeEvent(data)
				if err != nil {
					return err
				}
				return pub.PublishAlertCreated(ctx, ev)
			}
			return instrument("alert_created", base, pol), nil
		case outbox.KindAlertResolved:
			base := func(ctx context.Context, data []byte) error {
				ev, err := decodeEvent(data)
				if err != nil {
					return err
				}
				return pub.PublishAlertResolved(ctx, ev)
			}
			return instrument("alert_resolved", base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}

package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/obs"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
)

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_outbox_picked_total", Help: "Messages picked into processing.",
	})
	mRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_outbox_relayed_total", Help: "Picked messages by kind and result.",
	}, []string{"kind", "result"})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "pricewatch_outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricewatch_outbox_last_batch_size", Help: "Size of last picked batch.",
	})
)

type relayResult string

const (
	relayOK      relayResult = "ok"
	relayDropped relayResult = "dropped"
	relayFailed  relayResult = "failed"
	relaySkipped relayResult = "no_handler"
)

// Runner relays outbox rows to the event publisher. A row is marked done once
// published, or once its handler reports a permanent failure; anything else is
// picked again after the in-progress TTL.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler

	workers       int
	batchSize     int
	waitTime      time.Duration
	inProgressTTL time.Duration
}

func NewOutboxRunner(
	log *zap.Logger,
	repo outbox.Repository,
	dispatch outbox.GlobalHandler,
	workers int,
	cfg config.OutboxCfg,
) *Runner {
	return &Runner{
		log:           log.With(zap.String("component", "outbox")),
		repo:          repo,
		dispatch:      dispatch,
		workers:       max(workers, 1),
		batchSize:     cfg.Batch,
		waitTime:      cfg.Tick,
		inProgressTTL: cfg.InProgressTTL,
	}
}

// Run relays messages until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (r *Runner) worker(ctx context.Context, id int) {
	log := r.log.With(zap.Int("worker", id))
	log.Info("outbox worker started", zap.Duration("tick", r.waitTime))
	defer log.Info("outbox worker stopped")

	ticker := time.NewTicker(r.waitTime)
	defer ticker.Stop()
	for {
		r.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick relays one batch and returns how many messages were marked done.
func (r *Runner) Tick(ctx context.Context) int {
	t0 := time.Now()
	defer func() { mTickDur.Observe(time.Since(t0).Seconds()) }()

	ctx, span := otel.Tracer("outbox.runner").Start(ctx, "outbox.tick", trace.WithAttributes(
		attribute.Int("batch.limit", r.batchSize),
		attribute.String("in_progress_ttl", r.inProgressTTL.String()),
	))
	defer span.End()

	messages, err := r.repo.PickBatch(ctx, r.batchSize, r.inProgressTTL)
	if err != nil {
		obs.Fail(span, err, "pick")
		obs.WithTrace(ctx, r.log).Error("outbox pick error", zap.Error(err))
		return 0
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))

	done := make([]string, 0, len(messages))
	for _, m := range messages {
		res := r.relay(ctx, m)
		mRelayed.WithLabelValues(m.Kind.String(), string(res)).Inc()
		if res == relayOK || res == relayDropped {
			done = append(done, m.IdempotencyKey)
		}
	}
	if len(done) == 0 {
		return 0
	}

	if err := r.repo.MarkSuccess(ctx, done); err != nil {
		obs.Fail(span, err, "mark done")
		obs.WithTrace(ctx, r.log).Error("mark success error", zap.Error(err))
		return 0
	}
	return len(done)
}

// relay runs one message under the trace context saved when it was enqueued.
func (r *Runner) relay(ctx context.Context, m outbox.Message) relayResult {
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})
	ctx, span := otel.Tracer("outbox.runner").Start(parent, "outbox.dispatch", trace.WithAttributes(
		attribute.String("outbox.key", m.IdempotencyKey),
		attribute.String("outbox.kind", m.Kind.String()),
	))
	defer span.End()
	log := obs.WithTrace(ctx, r.log,
		zap.String("kind", m.Kind.String()),
		zap.String("key", m.IdempotencyKey),
		zap.Int("attempt", m.Attempts),
	)

	handler, err := r.dispatch(m.Kind)
	if err != nil {
		obs.Fail(span, err, "no handler")
		log.Error("no handler for kind", zap.Error(err))
		return relaySkipped
	}
	if err := handler(ctx, m.Data); err != nil {
		obs.Fail(span, err, "handler")
		if retry.IsPermanent(err) {
			log.Error("dropping outbox message", zap.Error(err))
			return relayDropped
		}
		log.Warn("handler error", zap.Error(err))
		return relayFailed
	}
	return relayOK
}

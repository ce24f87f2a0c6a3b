package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/obs/retry"
)

type Handler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	// HandlerTimeout bounds one handler call; zero means no limit.
	HandlerTimeout time.Duration
	Logger         *zap.Logger
}

// Consumer delivers each message once to the handler and commits it whatever
// the outcome; handler failures are only logged and counted.
type Consumer struct {
	r       messageReader
	topic   string
	timeout time.Duration
	backoff retry.Backoff
	log     *zap.Logger
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1,
		MaxBytes:          1e6,
		MaxWait:           time.Second,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})
	return newConsumer(r, cfg)
}

func newConsumer(r messageReader, cfg ConsumerConfig) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	return &Consumer{
		r:       r,
		topic:   cfg.Topic,
		timeout: cfg.HandlerTimeout,
		backoff: retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.1},
		log: log.With(
			zap.String("component", "kafka.consumer"),
			zap.String("topic", cfg.Topic),
			zap.String("group", cfg.GroupID),
		),
	}
}

// Consume blocks until ctx is done, returning ctx.Err().
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	failures := 0
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := c.backoff.Next(failures)
			failures++
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch EOF; retry", zap.Duration("backoff", wait))
			} else {
				c.log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", wait))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		failures = 0

		c.dispatch(ctx, msg, h)

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("commit failed; will retry later", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message, h Handler) {
	start := time.Now()
	err := c.handle(ctx, msg, h)
	mHandleDur.WithLabelValues(c.topic).Observe(time.Since(start).Seconds())

	fields := []zap.Field{zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset)}
	switch {
	case err == nil:
		mConsumed.WithLabelValues(c.topic, "ok").Inc()
	case errors.Is(err, ErrBadPayload):
		mConsumed.WithLabelValues(c.topic, "bad_payload").Inc()
		c.log.Warn("dropping undecodable message", append(fields, zap.Error(err))...)
	default:
		mConsumed.WithLabelValues(c.topic, "error").Inc()
		c.log.Error("handler error", append(fields, zap.Error(err))...)
	}
}

// handle runs h under the producer's trace context carried in the headers.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, h Handler) (err error) {
	hs := msg.Headers
	parent := otel.GetTextMapPropagator().Extract(ctx, headers{hs: &hs})
	mctx, span := otel.Tracer("kafka.consumer").Start(parent, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingKafkaDestinationPartition(msg.Partition),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
		),
	)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(mctx, c.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("handler panicked")
			c.log.Error("handler panic", zap.Any("panic", p), zap.Int64("offset", msg.Offset))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
		}
	}()
	return h(mctx, msg.Key, msg.Value)
}

func (c *Consumer) Close() error { return c.r.Close() }

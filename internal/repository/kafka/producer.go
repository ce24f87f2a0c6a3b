package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
	// BatchTimeout caps how long a single event waits for a batch to fill.
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

type Producer struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}, cfg.Topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		w:     w,
		topic: topic,
		log:   zap.L().With(zap.String("component", "kafka.producer"), zap.String("topic", topic)),
	}
}

func (p *Producer) WithLogger(l *zap.Logger) *Producer {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = l.With(zap.String("component", "kafka.producer"), zap.String("topic", p.topic))
	return &cp
}

// Publish writes m keyed by key. The event name goes into a header so
// consumers can route without decoding the payload.
func (p *Producer) Publish(ctx context.Context, key, event string, m proto.Message) error {
	value, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	hs := []kafka.Header{
		{Key: HeaderEvent, Value: []byte(event)},
		{Key: HeaderContentType, Value: []byte(contentTypeStruct)},
	}
	otel.GetTextMapPropagator().Inject(ctx, headers{hs: &hs})

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value, Headers: hs}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		mPublished.WithLabelValues(p.topic, "error").Inc()
		p.log.Warn("kafka write failed", zap.String("event", event), zap.String("key", key), zap.Error(err))
		return err
	}
	mPublished.WithLabelValues(p.topic, "ok").Inc()
	p.log.Debug("message published", zap.String("event", event), zap.String("key", key), zap.Int("value_len", len(value)))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

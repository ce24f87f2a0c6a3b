package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/kafka"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	kafkax "github.com/NordCoder/Pricewatch/internal/repository/kafka"
)

type messaging struct {
	events   kafka.AlertEvents
	consumer *kafkax.Consumer
	close    func()
}

func initKafka(ctx context.Context, cfg *config.Config, logger *zap.Logger) *messaging {
	if !cfg.Kafka.Enable {
		logger.Info("kafka disabled; alert events are only logged")
		return &messaging{events: logEvents{log: logger}, close: func() {}}
	}
	if cfg.Kafka.CreateTopics {
		specs := kafkax.TopicSpecs(cfg.Kafka.Topics(), cfg.Kafka.Partitions, cfg.Kafka.Replication, 5*time.Second)
		if err := kafkax.EnsureTopics(ctx, cfg.Kafka.Brokers, logger, specs...); err != nil {
			logger.Warn("ensure topics", zap.Error(err))
		}
	}

	producer := kafkax.NewProducer(kafkax.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.AlertsTopic,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}).WithLogger(logger)
	consumer := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.ChecksGroup,
		Topic:          cfg.Kafka.ChecksTopic,
		HandlerTimeout: cfg.Kafka.HandlerTimeout,
		Logger:         logger,
	})
	return &messaging{
		events:   kafkax.NewAlertEventsKafka(producer),
		consumer: consumer,
		close: func() {
			_ = consumer.Close()
			_ = producer.Close()
		},
	}
}

// logEvents drains the outbox when no broker is configured.
type logEvents struct{ log *zap.Logger }

func (l logEvents) PublishAlertCreated(_ context.Context, ev outbox.AlertEvent) error {
	l.log.Info("alert.created", zap.String("alert_id", ev.AlertID), zap.String("item_id", ev.ItemID), zap.String("type", ev.Type))
	return nil
}

func (l logEvents) PublishAlertResolved(_ context.Context, ev outbox.AlertEvent) error {
	l.log.Info("alert.resolved", zap.String("alert_id", ev.AlertID), zap.String("status", ev.Status))
	return nil
}

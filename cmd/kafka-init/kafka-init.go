package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/obs"
	kafkax "github.com/NordCoder/Pricewatch/internal/repository/kafka"
)

// kafka-init creates the topics named in the tracker config.
func main() {
	path := flag.String("config", envOr("PRICEWATCH_CONFIG", "config/tracker.yaml"), "tracker config file")
	wait := flag.Duration("wait", 30*time.Second, "per-topic wait for the controller")
	flag.Parse()

	logger := obs.MustLogger(obs.LogConfig{Level: "info", App: "kafka-init", Env: os.Getenv("APP_ENV")})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*path)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Kafka.Enable {
		logger.Info("kafka disabled in config; nothing to do")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	specs := kafkax.TopicSpecs(cfg.Kafka.Topics(), cfg.Kafka.Partitions, cfg.Kafka.Replication, *wait)
	if err := kafkax.EnsureTopics(ctx, cfg.Kafka.Brokers, logger, specs...); err != nil {
		logger.Fatal("ensure topics", zap.Error(err))
	}
	logger.Info("kafka-init ok", zap.Strings("topics", cfg.Kafka.Topics()), zap.Strings("brokers", cfg.Kafka.Brokers))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

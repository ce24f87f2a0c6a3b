package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PublishPolicy drives outbox relay publishes to the broker.
func PublishPolicy(log *zap.Logger) Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return Policy{
		Name:     "publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		OnAttempt: func(i int, err error) {
			log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
		},
		OnExhaust: func(err error) {
			if !errors.Is(err, context.Canceled) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}

// DeliveryPolicy drives notification channel retries. Attempts is the per-channel cap
// left for this dispatch; the caller books each attempt on the alert itself.
func DeliveryPolicy(channel string, attempts int, base time.Duration) Policy {
	return Policy{
		Name:     "notify_" + channel,
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: base, Max: 10 * base, Jitter: 0.2},
	}
}

package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max, then spreads it by ±Jitter.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt && (b.Max <= 0 || d < b.Max); i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 && d > 0 {
		d = time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*b.Jitter))
	}
	return d
}

// Fixed waits the same delay between attempts.
type Fixed time.Duration

func (f Fixed) Next(int) time.Duration { return time.Duration(f) }

// Permanent marks an error that retrying cannot fix, such as a missing contact.
// Do returns it after the first attempt regardless of the policy.
type Permanent struct{ Err error }

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

func IsPermanent(err error) bool { return errors.As(err, new(Permanent)) }

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

var (
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_retry_attempts_total",
		Help: "Total retry attempts (including final).",
	}, []string{"name"})
	retryExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_retry_exhausted_total",
		Help: "Operations that gave up after a failed attempt.",
	}, []string{"name", "reason"})
	retryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricewatch_retry_duration_seconds",
		Help:    "Total time spent inside retry.Do (success or fail).",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

func (p Policy) name() string {
	if p.Name == "" {
		return "default"
	}
	return p.Name
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do calls fn until it succeeds, the policy gives up or ctx is done.
// fn receives the zero-based attempt number. A backoff that would outlive the
// ctx deadline ends the loop early with the last error.
func Do(ctx context.Context, fn func(attempt int) error, p Policy) error {
	name := p.name()
	start := time.Now()
	defer func() { retryLatency.WithLabelValues(name).Observe(time.Since(start).Seconds()) }()

	attempts := max(p.Attempts, 1)
	span := trace.SpanFromContext(ctx)

	giveUp := func(reason string, err error) error {
		retryExhausted.WithLabelValues(name, reason).Inc()
		if p.OnExhaust != nil {
			p.OnExhaust(err)
		}
		return err
	}

	var err error
	for i := 0; i < attempts; i++ {
		retryAttempts.WithLabelValues(name).Inc()
		if err = fn(i); err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		if span.IsRecording() {
			span.AddEvent("retry.attempt", trace.WithAttributes(
				attribute.String("retry.name", name),
				attribute.Int("retry.attempt", i+1),
			))
		}
		switch {
		case !p.retryable(err):
			return giveUp("final", err)
		case i == attempts-1:
			return giveUp("attempts", err)
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff.Next(i)
		}
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
			return giveUp("deadline", err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

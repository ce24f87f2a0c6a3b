package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/domain/user"
	"github.com/NordCoder/Pricewatch/internal/obs"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
	intoutbox "github.com/NordCoder/Pricewatch/internal/outbox"
	"github.com/NordCoder/Pricewatch/internal/repository/postgres"
)

var (
	mSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_notifier_sends_total", Help: "Channel send attempts by result",
	}, []string{"channel", "result"})
	mResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_notifier_alerts_resolved_total", Help: "Alerts moved to a terminal status by dispatch",
	}, []string{"status"})
)

// ChannelOutcome is what one dispatch did on one channel.
type ChannelOutcome struct {
	Channel  alert.Channel
	Attempts int
	Sent     bool
	Err      error
}

type Result struct {
	Alert    alert.Alert
	Channels []ChannelOutcome
	Resolved bool
}

type Dispatcher struct {
	Log    *zap.Logger
	Users  user.Directory
	Alerts alert.Repo
	Outbox outbox.Repository
	Tx     postgres.Transactor
	Email  EmailSender
	Push   PushSender
	Cfg    config.AlertsCfg
	Now    func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) maxAttempts() int {
	if d.Cfg.MaxAttempts > 0 {
		return d.Cfg.MaxAttempts
	}
	return alert.DefaultMaxAttempts
}

// EnabledFor combines the user's opt-ins with the item's alert flags.
func EnabledFor(p user.Preferences, cfg item.AlertConfig) alert.Enabled {
	return alert.Enabled{
		Email: p.EmailEnabled && cfg.EmailEnabled,
		Push:  p.PushEnabled && cfg.PushEnabled,
	}
}

// Dispatch sends a pending alert through every enabled channel that is not yet
// final, books each attempt and resolves the status. Channel failures are part
// of the result; the returned error is about loading or saving state. When the
// stored alert was resolved meanwhile nothing is saved and the error wraps
// alert.ErrAlreadyResolved.
func (d *Dispatcher) Dispatch(ctx context.Context, a alert.Alert, it item.TrackedItem) (Result, error) {
	ctx, span := obs.Tracer().Start(ctx, "notifier.dispatch", trace.WithAttributes(
		attribute.String("alert.id", a.ID),
		attribute.String("alert.type", string(a.Type)),
	))
	defer span.End()
	log := obs.WithTrace(ctx, d.Log, zap.String("alert_id", a.ID), zap.String("item_id", a.ItemID))

	res := Result{Alert: a}
	if a.IsTerminal() {
		return res, nil
	}

	prof, err := d.Users.Profile(ctx, a.UserID)
	if err != nil {
		obs.Fail(span, err, "load profile")
		return res, fmt.Errorf("load profile: %w", err)
	}
	en := EnabledFor(prof.Preferences, it.Alerts)
	limit := d.maxAttempts()
	content := Render(a)

	for _, ch := range a.PendingChannels(en, limit) {
		out := ChannelOutcome{Channel: ch}
		left := limit - a.Channel(ch).Attempts
		pol := retry.DeliveryPolicy(string(ch), left, d.Cfg.RetryBackoff)
		pol.OnAttempt = func(i int, err error) {
			log.Warn("channel send failed", zap.String("channel", string(ch)), zap.Int("attempt", a.Channel(ch).Attempts), zap.Error(err))
		}

		out.Err = retry.Do(ctx, func(int) error {
			sendErr := d.send(ctx, ch, prof.Contact, content)
			next, recErr := a.RecordAttempt(ch, sendErr, d.now(), limit)
			if recErr != nil {
				return retry.Permanent{Err: recErr}
			}
			a = next
			out.Attempts++
			if sendErr != nil {
				mSends.WithLabelValues(string(ch), "error").Inc()
				return sendErr
			}
			mSends.WithLabelValues(string(ch), "ok").Inc()
			return nil
		}, pol)
		out.Sent = a.Channel(ch).Sent
		res.Channels = append(res.Channels, out)
	}

	wasTerminal := a.IsTerminal()
	a = a.Resolve(en, limit, d.now())
	res.Resolved = !wasTerminal && a.IsTerminal()
	res.Alert = a

	err = d.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := d.Alerts.Save(txCtx, &a); err != nil {
			return fmt.Errorf("save alert: %w", err)
		}
		if res.Resolved {
			return intoutbox.EnqueueAlert(txCtx, d.Outbox, outbox.KindAlertResolved, a, a.ResolvedAt)
		}
		return nil
	})
	if errors.Is(err, alert.ErrAlreadyResolved) {
		log.Info("alert resolved elsewhere during dispatch, result discarded")
		res.Resolved = false
		return res, err
	}
	if err != nil {
		obs.Fail(span, err, "save")
		return res, err
	}
	if res.Resolved {
		mResolved.WithLabelValues(string(a.Status)).Inc()
		log.Info("alert resolved", zap.String("status", string(a.Status)),
			zap.Int("email_attempts", a.Email.Attempts), zap.Int("push_attempts", a.Push.Attempts))
	}
	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, ch alert.Channel, to user.Contact, c Content) error {
	switch ch {
	case alert.ChannelEmail:
		if d.Email == nil {
			return retry.Permanent{Err: errors.New("email channel not configured")}
		}
		return d.Email.SendEmail(ctx, to, c.Subject, c.Body)
	case alert.ChannelPush:
		if d.Push == nil {
			return retry.Permanent{Err: errors.New("push channel not configured")}
		}
		return d.Push.SendPush(ctx, to, c.Title, c.Body, c.Data)
	}
	return retry.Permanent{Err: fmt.Errorf("unknown channel %q", ch)}
}

package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/obs"
	intoutbox "github.com/NordCoder/Pricewatch/internal/outbox"
	"github.com/NordCoder/Pricewatch/internal/repository/postgres"
	"github.com/NordCoder/Pricewatch/internal/services/tracker"
)

var (
	mExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_sweeper_expired_total", Help: "Pending alerts failed by expiry",
	})
	mRedelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_sweeper_redelivered_total", Help: "Pending alerts handed back to the dispatcher",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_sweeper_errors_total", Help: "Errors in sweeper passes",
	})
)

// redeliverGrace keeps the sweeper away from alerts a dispatch is still working on.
const redeliverGrace = time.Minute

type Report struct {
	Expired     int
	Redelivered int
	Errors      int
}

// Runner is the cleanup pass outside the hot path: it fails expired pending
// alerts and retries delivery of pending alerts that still have attempts left.
type Runner struct {
	Log        *zap.Logger
	Alerts     alert.Repo
	Items      item.Repo
	Outbox     outbox.Repository
	Tx         postgres.Transactor
	Dispatcher tracker.Dispatcher
	Cfg        config.SweeperCfg
	AlertsCfg  config.AlertsCfg
	Now        func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Interval)
	defer ticker.Stop()

	r.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Runner) Sweep(ctx context.Context) Report {
	ctx, span := obs.Tracer().Start(ctx, "sweeper.pass")
	defer span.End()
	log := obs.WithTrace(ctx, r.Log)

	var rep Report
	r.expire(ctx, log, &rep)
	r.redeliver(ctx, log, &rep)

	if rep.Expired+rep.Redelivered+rep.Errors > 0 {
		log.Info("sweep finished",
			zap.Int("expired", rep.Expired), zap.Int("redelivered", rep.Redelivered), zap.Int("errors", rep.Errors))
	}
	return rep
}

func (r *Runner) expire(ctx context.Context, log *zap.Logger, rep *Report) {
	now := r.now()
	list, err := r.Alerts.ListExpiredPending(ctx, now, r.Cfg.Batch)
	if err != nil {
		rep.Errors++
		mErr.Inc()
		log.Warn("list expired alerts", zap.Error(err))
		return
	}
	for _, a := range list {
		next, ok := a.Expire(now)
		if !ok {
			continue
		}
		err := r.Tx.WithTx(ctx, func(txCtx context.Context) error {
			if err := r.Alerts.Save(txCtx, &next); err != nil {
				return fmt.Errorf("save alert: %w", err)
			}
			return intoutbox.EnqueueAlert(txCtx, r.Outbox, outbox.KindAlertResolved, next, now)
		})
		if errors.Is(err, alert.ErrAlreadyResolved) {
			continue
		}
		if err != nil {
			rep.Errors++
			mErr.Inc()
			log.Warn("expire alert", zap.String("alert_id", a.ID), zap.Error(err))
			continue
		}
		rep.Expired++
		mExpired.Inc()
	}
}

func (r *Runner) redeliver(ctx context.Context, log *zap.Logger, rep *Report) {
	limit := r.AlertsCfg.MaxAttempts
	if limit <= 0 {
		limit = alert.DefaultMaxAttempts
	}
	now := r.now()
	list, err := r.Alerts.ListRedeliverable(ctx, now, limit, r.Cfg.Batch)
	if err != nil {
		rep.Errors++
		mErr.Inc()
		log.Warn("list redeliverable alerts", zap.Error(err))
		return
	}
	for _, a := range list {
		if now.Sub(a.UpdatedAt) < redeliverGrace {
			continue
		}
		it, err := r.Items.GetByID(ctx, a.ItemID)
		if err != nil {
			rep.Errors++
			mErr.Inc()
			log.Warn("load alert item", zap.String("alert_id", a.ID), zap.String("item_id", a.ItemID), zap.Error(err))
			continue
		}
		if _, err := r.Dispatcher.Dispatch(ctx, *a, *it); err != nil {
			if errors.Is(err, alert.ErrAlreadyResolved) {
				log.Debug("alert resolved before redelivery", zap.String("alert_id", a.ID))
				continue
			}
			rep.Errors++
			mErr.Inc()
			log.Warn("redeliver alert", zap.String("alert_id", a.ID), zap.Error(err))
			continue
		}
		rep.Redelivered++
		mRedelivered.Inc()
	}
}

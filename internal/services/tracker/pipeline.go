package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/obs"
	intoutbox "github.com/NordCoder/Pricewatch/internal/outbox"
	"github.com/NordCoder/Pricewatch/internal/repository/postgres"
	"github.com/NordCoder/Pricewatch/internal/services/notifier"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, a alert.Alert, it item.TrackedItem) (notifier.Result, error)
}

type Deps struct {
	Log        *zap.Logger
	Items      item.Repo
	Alerts     alert.Repo
	Outbox     outbox.Repository
	Tx         postgres.Transactor
	Fetcher    item.Fetcher
	Dispatcher Dispatcher
}

// Tracker runs the fetch, record, decide, persist and dispatch pipeline for items.
type Tracker struct {
	log        *zap.Logger
	items      item.Repo
	alerts     alert.Repo
	outbox     outbox.Repository
	tx         postgres.Transactor
	fetcher    item.Fetcher
	dispatcher Dispatcher

	sched  config.SchedCfg
	alertC config.AlertsCfg

	flight singleflight.Group
	now    func() time.Time
	newID  func() string
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(d Deps, sched config.SchedCfg, alerts config.AlertsCfg) *Tracker {
	return &Tracker{
		log:        d.Log.With(zap.String("component", "tracker")),
		items:      d.Items,
		alerts:     d.Alerts,
		outbox:     d.Outbox,
		tx:         d.Tx,
		fetcher:    d.Fetcher,
		dispatcher: d.Dispatcher,
		sched:      sched,
		alertC:     alerts,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		sleep:      sleepCtx,
	}
}

// WithClock replaces the wall clock; used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tm.C:
		return nil
	}
}

// process runs the pipeline for one item, never more than once at a time per item.
func (t *Tracker) process(ctx context.Context, it *item.TrackedItem) ItemResult {
	v, _, _ := t.flight.Do(it.ID, func() (any, error) {
		return t.safeProcess(ctx, it), nil
	})
	return v.(ItemResult)
}

func (t *Tracker) safeProcess(ctx context.Context, it *item.TrackedItem) (res ItemResult) {
	defer func() {
		if p := recover(); p != nil {
			mPanics.Inc()
			t.log.Error("item pipeline panic", zap.String("item_id", it.ID), zap.Any("panic", p), zap.Stack("stack"))
			res = ItemResult{ItemID: it.ID, Outcome: OutcomeErrored, Stage: StagePanic, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return t.processItem(ctx, it)
}

func (t *Tracker) processItem(ctx context.Context, it *item.TrackedItem) ItemResult {
	ctx, span := obs.Tracer().Start(ctx, "tracker.item", trace.WithAttributes(
		attribute.String("item.id", it.ID),
		attribute.String("item.frequency", string(it.CheckFrequency)),
	))
	defer span.End()
	log := obs.WithTrace(ctx, t.log, zap.String("item_id", it.ID))

	res := ItemResult{ItemID: it.ID}
	fail := func(stage Stage, err error) ItemResult {
		obs.Fail(span, err, string(stage))
		log.Warn("item pipeline failed", zap.String("stage", string(stage)), zap.Error(err))
		res.Outcome, res.Stage, res.Err = OutcomeErrored, stage, err
		mItems.WithLabelValues(string(OutcomeErrored)).Inc()
		return res
	}

	if !it.Eligible() {
		return fail(StageFetch, ErrItemNotEligible)
	}

	observations := t.fetchAll(ctx, it, log)
	updated := *it
	for _, o := range observations {
		updated = updated.ApplySourceObservation(o)
	}

	now := t.now()
	best, ok := SelectBestPrice(observations)
	if !ok {
		updated = updated.MarkChecked(now)
		if err := t.items.SaveTracking(ctx, &updated); err != nil {
			return fail(StageSave, saveErr(err))
		}
		if len(observations) == 0 {
			return fail(StageFetch, item.ErrNoObservations)
		}
		res.Outcome = OutcomeUnchanged
		mItems.WithLabelValues(string(res.Outcome)).Inc()
		return res
	}

	oldPrice := it.BaselinePrice()
	updated, err := updated.RecordObservation(best.Price, best.Source, now)
	if err != nil {
		return fail(StageRecord, err)
	}
	res.Price, res.Source = best.Price, best.Source

	var created *alert.Alert
	res.Outcome = OutcomeUnchanged
	if best.Price != oldPrice {
		res.Outcome = OutcomeUpdated
		if trig, fire := Decide(oldPrice, best.Price, updated.Alerts); fire {
			a := alert.New(t.newID(), updated.UserID, updated.ID, updated.Product.Name, updated.Currency, trig, now, t.alertC.TTL)
			created = &a
		}
	}

	err = t.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := t.items.SaveTracking(txCtx, &updated); err != nil {
			return saveErr(err)
		}
		if created == nil {
			return nil
		}
		if err := t.alerts.Create(txCtx, created); err != nil {
			return fmt.Errorf("create alert: %w", err)
		}
		return intoutbox.EnqueueAlert(txCtx, t.outbox, outbox.KindAlertCreated, *created, now)
	})
	if err != nil {
		return fail(StageSave, err)
	}
	mItems.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(attribute.Float64("item.price", best.Price), attribute.String("item.outcome", string(res.Outcome)))

	if created == nil {
		return res
	}
	mAlerts.WithLabelValues(string(created.Type)).Inc()
	log.Info("alert created",
		zap.String("alert_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.String("priority", string(created.Priority)),
		zap.Float64("old_price", oldPrice),
		zap.Float64("new_price", best.Price))

	dres, err := t.dispatcher.Dispatch(ctx, *created, updated)
	res.Alert = &dres.Alert
	if err != nil {
		res.Stage, res.Err = StageDispatch, err
		log.Warn("dispatch failed, alert stays pending", zap.String("alert_id", created.ID), zap.Error(err))
	}
	return res
}

// fetchAll asks every active source once. Failed sources are left out.
func (t *Tracker) fetchAll(ctx context.Context, it *item.TrackedItem, log *zap.Logger) []item.Observation {
	sources := it.ActiveSources()
	out := make([]item.Observation, 0, len(sources))
	for _, src := range sources {
		o, err := t.fetcher.FetchPrice(ctx, it, src)
		if err != nil {
			mFetches.WithLabelValues("error").Inc()
			if !errors.Is(err, context.Canceled) {
				log.Debug("source fetch failed", zap.String("source", src.Name), zap.Error(err))
			}
			continue
		}
		if o.Source == "" {
			o.Source = src.Name
		}
		if o.At.IsZero() {
			o.At = t.now()
		}
		mFetches.WithLabelValues("ok").Inc()
		out = append(out, o)
	}
	return out
}

// saveErr marks an item the user stopped tracking mid-check as not eligible.
func saveErr(err error) error {
	if errors.Is(err, item.ErrNotTracked) {
		return fmt.Errorf("save item: %w: %w", ErrItemNotEligible, err)
	}
	return fmt.Errorf("save item: %w", err)
}

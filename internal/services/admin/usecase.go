package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	ob "github.com/NordCoder/Pricewatch/internal/outbox"
	"github.com/NordCoder/Pricewatch/internal/repository/postgres"
	"github.com/NordCoder/Pricewatch/internal/services/scheduler"
	"github.com/NordCoder/Pricewatch/internal/services/tracker"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

type Scheduler interface {
	Start(ctx context.Context) bool
	Stop(ctx context.Context) error
	Status() scheduler.Status
	RunOnce(ctx context.Context) tracker.CycleReport
}

type Checker interface {
	CheckItem(ctx context.Context, id string) (tracker.ItemResult, error)
	CheckUser(ctx context.Context, userID string) (tracker.CycleReport, error)
}

type Deps struct {
	Log    *zap.Logger
	Sched  Scheduler
	Checks Checker
	Alerts alert.Repo
	Outbox outbox.Repository
	Tx     postgres.Transactor
	// Base outlives admin requests; the scheduler loop runs under it.
	Base        context.Context
	StopTimeout time.Duration
}

type Usecase struct {
	log         *zap.Logger
	sched       Scheduler
	checks      Checker
	alerts      alert.Repo
	outbox      outbox.Repository
	tx          postgres.Transactor
	base        context.Context
	stopTimeout time.Duration
	now         func() time.Time
}

func NewUsecase(d Deps) *Usecase {
	base := d.Base
	if base == nil {
		base = context.Background()
	}
	return &Usecase{
		log:         d.Log.With(zap.String("component", "admin")),
		sched:       d.Sched,
		checks:      d.Checks,
		alerts:      d.Alerts,
		outbox:      d.Outbox,
		tx:          d.Tx,
		base:        base,
		stopTimeout: d.StopTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (u *Usecase) StartScheduler() (scheduler.Status, error) {
	if !u.sched.Start(u.base) {
		return u.sched.Status(), ErrAlreadyRunning
	}
	return u.sched.Status(), nil
}

// StopScheduler waits for the in-flight cycle, bounded by the configured stop timeout.
func (u *Usecase) StopScheduler(ctx context.Context) (scheduler.Status, error) {
	if u.stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.stopTimeout)
		defer cancel()
	}
	if err := u.sched.Stop(ctx); err != nil {
		return u.sched.Status(), fmt.Errorf("stop scheduler: %w", err)
	}
	return u.sched.Status(), nil
}

func (u *Usecase) Status() scheduler.Status { return u.sched.Status() }

func (u *Usecase) RunCycle(ctx context.Context) tracker.CycleReport {
	return u.sched.RunOnce(ctx)
}

func (u *Usecase) CheckItem(ctx context.Context, id string) (tracker.ItemResult, error) {
	return u.checks.CheckItem(ctx, id)
}

func (u *Usecase) CheckUser(ctx context.Context, userID string) (tracker.CycleReport, error) {
	return u.checks.CheckUser(ctx, userID)
}

// DismissAlert is idempotent; the first dismissal of a pending alert emits alert.resolved.
func (u *Usecase) DismissAlert(ctx context.Context, id string) (*alert.Alert, error) {
	a, err := u.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if a.Status == alert.StatusDismissed {
		return a, nil
	}
	now := u.now()
	next, err := a.Dismiss(now)
	if err != nil {
		return a, err
	}
	err = u.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := u.alerts.Save(txCtx, &next); err != nil {
			return fmt.Errorf("save alert: %w", err)
		}
		return ob.EnqueueAlert(txCtx, u.outbox, outbox.KindAlertResolved, next, now)
	})
	if err != nil {
		return a, err
	}
	u.log.Info("alert dismissed", zap.String("alert_id", id))
	return &next, nil
}

func (u *Usecase) MarkAlertRead(ctx context.Context, id string, read bool) (*alert.Alert, error) {
	a, err := u.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	var next alert.Alert
	if read {
		next = a.MarkRead(u.now())
	} else {
		next = a.MarkUnread(u.now())
	}
	if next.Read == a.Read {
		return a, nil
	}
	if err := u.alerts.Save(ctx, &next); err != nil {
		return a, fmt.Errorf("save alert: %w", err)
	}
	return &next, nil
}

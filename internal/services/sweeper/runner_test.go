package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/repository/memory"
	"github.com/NordCoder/Pricewatch/internal/services/notifier"
)

var now = time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a alert.Alert, _ item.TrackedItem) (notifier.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, a.ID)
	return notifier.Result{Alert: a}, d.err
}

func seedAlert(t *testing.T, repo *memory.AlertRepo, id, itemID string, created time.Time, ttl time.Duration) alert.Alert {
	t.Helper()
	a := alert.New(id, "u1", itemID, "Lamp", "USD", alert.Trigger{Type: alert.TypePriceDrop, Priority: alert.PriorityLow}, created, ttl)
	require.NoError(t, repo.Create(context.Background(), &a))
	return a
}

func newRunner(t *testing.T, alerts *memory.AlertRepo, ob *memory.Outbox, d *recordingDispatcher) *Runner {
	return &Runner{
		Log:        zaptest.NewLogger(t),
		Alerts:     alerts,
		Items:      memory.NewItemRepo(item.TrackedItem{ID: "i1", UserID: "u1"}),
		Outbox:     ob,
		Tx:         memory.Transactor{},
		Dispatcher: d,
		Cfg:        config.SweeperCfg{Interval: time.Minute, Batch: 100},
		AlertsCfg:  config.AlertsCfg{MaxAttempts: 3},
		Now:        func() time.Time { return now },
	}
}

func TestSweep_ExpiresPendingAlerts(t *testing.T) {
	alerts, ob, d := memory.NewAlertRepo(), memory.NewOutbox(), &recordingDispatcher{}
	seedAlert(t, alerts, "old", "i1", now.Add(-8*24*time.Hour), 0)
	done := seedAlert(t, alerts, "sent", "i1", now.Add(-8*24*time.Hour), 0)
	done = done.Resolve(alert.Enabled{}, 3, now.Add(-7*24*time.Hour-time.Hour))
	require.NoError(t, alerts.Save(context.Background(), &done))

	rep := newRunner(t, alerts, ob, d).Sweep(context.Background())
	assert.Equal(t, 1, rep.Expired)
	assert.Zero(t, rep.Errors)

	got, err := alerts.GetByID(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, alert.StatusFailed, got.Status)
	assert.Equal(t, now, got.ResolvedAt)
	assert.Equal(t, outbox.KindAlertResolved, ob.Kinds()["alert.resolved:old"])

	untouched, err := alerts.GetByID(context.Background(), "sent")
	require.NoError(t, err)
	assert.Equal(t, alert.StatusSent, untouched.Status)
	assert.Empty(t, d.ids, "expired alerts are not redelivered")
}

func TestSweep_RedeliversStalePending(t *testing.T) {
	alerts, ob, d := memory.NewAlertRepo(), memory.NewOutbox(), &recordingDispatcher{}
	stale := seedAlert(t, alerts, "stale", "i1", now.Add(-time.Hour), 0)
	stale, err := stale.RecordAttempt(alert.ChannelEmail, errors.New("down"), now.Add(-time.Hour), 3)
	require.NoError(t, err)
	require.NoError(t, alerts.Save(context.Background(), &stale))
	seedAlert(t, alerts, "fresh", "i1", now.Add(-10*time.Second), 0)
	seedAlert(t, alerts, "orphan", "gone", now.Add(-time.Hour), 0)

	rep := newRunner(t, alerts, ob, d).Sweep(context.Background())
	assert.Equal(t, 1, rep.Redelivered)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, []string{"stale"}, d.ids)
}

func TestSweep_SkipsExhaustedAlerts(t *testing.T) {
	alerts, ob, d := memory.NewAlertRepo(), memory.NewOutbox(), &recordingDispatcher{}
	a := seedAlert(t, alerts, "spent", "i1", now.Add(-time.Hour), 0)
	for i := 0; i < 3; i++ {
		var err error
		a, err = a.RecordAttempt(alert.ChannelEmail, errors.New("x"), now.Add(-time.Hour), 3)
		require.NoError(t, err)
		a, err = a.RecordAttempt(alert.ChannelPush, errors.New("x"), now.Add(-time.Hour), 3)
		require.NoError(t, err)
	}
	require.NoError(t, alerts.Save(context.Background(), &a))

	rep := newRunner(t, alerts, ob, d).Sweep(context.Background())
	assert.Zero(t, rep.Redelivered)
	assert.Empty(t, d.ids)
}

func TestSweep_DispatchErrorCounted(t *testing.T) {
	alerts, ob := memory.NewAlertRepo(), memory.NewOutbox()
	d := &recordingDispatcher{err: errors.New("db down")}
	seedAlert(t, alerts, "a", "i1", now.Add(-time.Hour), 0)

	rep := newRunner(t, alerts, ob, d).Sweep(context.Background())
	assert.Zero(t, rep.Redelivered)
	assert.Equal(t, 1, rep.Errors)
}

func TestRun_StopsOnContext(t *testing.T) {
	alerts := memory.NewAlertRepo()
	r := newRunner(t, alerts, memory.NewOutbox(), &recordingDispatcher{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweep_AlreadyResolvedIsNotAnError(t *testing.T) {
	alerts, ob := memory.NewAlertRepo(), memory.NewOutbox()
	d := &recordingDispatcher{err: fmt.Errorf("save alert: %w", alert.ErrAlreadyResolved)}
	seedAlert(t, alerts, "a", "i1", now.Add(-time.Hour), 0)

	rep := newRunner(t, alerts, ob, d).Sweep(context.Background())
	assert.Zero(t, rep.Redelivered)
	assert.Zero(t, rep.Errors)
}

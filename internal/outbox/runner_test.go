package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
	"github.com/NordCoder/Pricewatch/internal/repository/memory"
)

type recordingEvents struct {
	mu       sync.Mutex
	created  []outbox.AlertEvent
	resolved []outbox.AlertEvent
	err      error
}

func (r *recordingEvents) PublishAlertCreated(_ context.Context, ev outbox.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, ev)
	return nil
}

func (r *recordingEvents) PublishAlertResolved(_ context.Context, ev outbox.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.resolved = append(r.resolved, ev)
	return nil
}

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleAlert(id string) alert.Alert {
	return alert.New(id, "u1", "i1", "Desk", "USD", alert.Trigger{
		Type: alert.TypePriceDrop, Priority: alert.PriorityHigh,
		Snapshot: alert.Snapshot{PreviousPrice: 100, CurrentPrice: 70},
	}, at, 0)
}

func newRelay(t *testing.T, repo outbox.Repository, pub *recordingEvents, ttl time.Duration) *Runner {
	return NewOutboxRunner(zaptest.NewLogger(t), repo, MakeGlobalOutboxHandler(pub, retry.Policy{Attempts: 1}), 1,
		config.OutboxCfg{Tick: 10 * time.Millisecond, Batch: 10, InProgressTTL: ttl})
}

func TestEnqueueAlert_OnePerKind(t *testing.T) {
	repo := memory.NewOutbox()
	a := sampleAlert("a1")
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertCreated, a, at))
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertCreated, a, at))
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertResolved, a, at))

	assert.Equal(t, map[string]outbox.Kind{
		"alert.created:a1":  outbox.KindAlertCreated,
		"alert.resolved:a1": outbox.KindAlertResolved,
	}, repo.Kinds())
}

func TestTick_RelaysAndMarksDone(t *testing.T) {
	repo := memory.NewOutbox()
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertCreated, sampleAlert("a1"), at))
	resolved := sampleAlert("a2")
	resolved.Status = alert.StatusSent
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertResolved, resolved, at))

	pub := &recordingEvents{}
	r := newRelay(t, repo, pub, time.Minute)

	assert.Equal(t, 2, r.Tick(context.Background()))
	require.Len(t, pub.created, 1)
	require.Len(t, pub.resolved, 1)
	assert.Equal(t, outbox.AlertEvent{
		AlertID: "a1", UserID: "u1", ItemID: "i1", Type: "price_drop", Priority: "high",
		Status: "pending", Price: 70, OccurredAt: at,
	}, pub.created[0])
	assert.Equal(t, "sent", pub.resolved[0].Status)

	assert.Zero(t, r.Tick(context.Background()))
	assert.Len(t, pub.created, 1)
}

func TestTick_FailedMessageIsRetriedAfterTTL(t *testing.T) {
	repo := memory.NewOutbox()
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertCreated, sampleAlert("a1"), at))

	pub := &recordingEvents{err: errors.New("broker down")}
	r := newRelay(t, repo, pub, time.Nanosecond)
	assert.Zero(t, r.Tick(context.Background()))

	pub.err = nil
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, r.Tick(context.Background()))
	assert.Len(t, pub.created, 1)
}

func TestTick_UnknownKindIsLeft(t *testing.T) {
	repo := memory.NewOutbox()
	require.NoError(t, repo.Enqueue(context.Background(), "weird:1", outbox.Kind(99), []byte(`{}`)))

	r := newRelay(t, repo, &recordingEvents{}, time.Minute)
	assert.Zero(t, r.Tick(context.Background()))
}

func TestTick_UndecodablePayloadIsDropped(t *testing.T) {
	repo := memory.NewOutbox()
	require.NoError(t, repo.Enqueue(context.Background(), "alert.created:bad", outbox.KindAlertCreated, []byte(`{`)))

	pub := &recordingEvents{}
	r := newRelay(t, repo, pub, time.Nanosecond)
	assert.Equal(t, 1, r.Tick(context.Background()))
	assert.Empty(t, pub.created)

	time.Sleep(time.Millisecond)
	assert.Zero(t, r.Tick(context.Background()), "dropped rows are not picked again")
}

func TestRun_StopsWithContext(t *testing.T) {
	repo := memory.NewOutbox()
	require.NoError(t, EnqueueAlert(context.Background(), repo, outbox.KindAlertCreated, sampleAlert("a1"), at))
	pub := &recordingEvents{}
	r := newRelay(t, repo, pub, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.created) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestWrapKindHandler(t *testing.T) {
	calls := 0
	decodeFail := WrapKindHandler(func(context.Context, []byte) error {
		calls++
		return &json.SyntaxError{Offset: 1}
	}, retry.Policy{Attempts: 3})
	assert.Error(t, decodeFail(context.Background(), nil))
	assert.Equal(t, 1, calls, "undecodable payloads are not retried")

	calls = 0
	flaky := WrapKindHandler(func(context.Context, []byte) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	}, retry.Policy{Attempts: 3})
	assert.NoError(t, flaky(context.Background(), nil))
	assert.Equal(t, 3, calls)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAlertRepo_SaveRefusesToLeaveTerminalStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepo()
	a := alert.New("a1", "u1", "i1", "Lamp", "USD", alert.Trigger{Type: alert.TypePriceDrop, Priority: alert.PriorityLow}, t0, time.Hour)
	require.NoError(t, repo.Create(ctx, &a))

	dismissed, err := a.Dismiss(t0.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, &dismissed))

	stale := a.Resolve(alert.Enabled{}, 3, t0.Add(2*time.Minute))
	require.Equal(t, alert.StatusSent, stale.Status)
	assert.ErrorIs(t, repo.Save(ctx, &stale), alert.ErrAlreadyResolved)
	assert.ErrorIs(t, repo.Save(ctx, &a), alert.ErrAlreadyResolved)

	read := dismissed.MarkRead(t0.Add(3 * time.Minute))
	require.NoError(t, repo.Save(ctx, &read), "same terminal status may still change the read flag")

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, alert.StatusDismissed, got.Status)
	assert.True(t, got.Read)

	sent := seedSent(t, repo, "a2")
	gone, err := sent.Dismiss(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.NoError(t, repo.Save(ctx, &gone), "a sent alert can still be dismissed")

	missing := a
	missing.ID = "nope"
	assert.ErrorIs(t, repo.Save(ctx, &missing), ErrNotFound)
}

func seedSent(t *testing.T, repo *AlertRepo, id string) alert.Alert {
	t.Helper()
	a := alert.New(id, "u1", "i1", "Lamp", "USD", alert.Trigger{Type: alert.TypePriceDrop, Priority: alert.PriorityLow}, t0, time.Hour)
	require.NoError(t, repo.Create(context.Background(), &a))
	a = a.Resolve(alert.Enabled{}, 3, t0)
	require.NoError(t, repo.Save(context.Background(), &a))
	return a
}

func TestItemRepo_SaveTrackingKeepsUserFields(t *testing.T) {
	ctx := context.Background()
	base := item.TrackedItem{
		ID: "i1", UserID: "u1", CurrentPrice: 100, IsTracking: true,
		CheckFrequency: item.FrequencyHourly, Status: item.StatusActive,
		Sources: []item.Source{{Name: "shop", Active: true}},
	}
	repo := NewItemRepo(base)

	threshold := 5.0
	edited := base.Clone()
	edited.Alerts.DropThresholdPercent = &threshold
	require.NoError(t, repo.Save(ctx, &edited))

	checked := base.Clone()
	checked.CurrentPrice = 90
	checked.LastChecked = t0
	checked.History = []item.PriceEntry{{Price: 90, At: t0, Source: "shop"}}
	require.NoError(t, repo.SaveTracking(ctx, &checked))

	got, err := repo.GetByID(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.CurrentPrice)
	assert.Equal(t, t0, got.LastChecked)
	assert.Len(t, got.History, 1)
	require.NotNil(t, got.Alerts.DropThresholdPercent)
	assert.Equal(t, 5.0, *got.Alerts.DropThresholdPercent)

	removed := got.Clone()
	removed.Status = item.StatusRemoved
	require.NoError(t, repo.Save(ctx, &removed))
	assert.ErrorIs(t, repo.SaveTracking(ctx, &checked), item.ErrNotTracked)

	missing := checked.Clone()
	missing.ID = "nope"
	assert.ErrorIs(t, repo.SaveTracking(ctx, &missing), ErrNotFound)
}

func TestItemRepo_UnknownFrequencyStoredAsDaily(t *testing.T) {
	ctx := context.Background()
	repo := NewItemRepo()
	it := item.TrackedItem{ID: "i1", IsTracking: true, Status: item.StatusActive, CheckFrequency: "monthly"}
	require.NoError(t, repo.Save(ctx, &it))

	due, err := repo.FindDue(ctx, item.FrequencyDaily, t0, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, item.FrequencyDaily, due[0].CheckFrequency)
}

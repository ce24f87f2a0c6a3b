package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

func ptr(v float64) *float64 { return &v }

func TestDecide_DropOverThreshold(t *testing.T) {
	trig, ok := Decide(100, 80, item.AlertConfig{DropThresholdPercent: ptr(10)})
	require.True(t, ok)
	assert.Equal(t, alert.TypePriceDrop, trig.Type)
	assert.Equal(t, alert.PriorityMedium, trig.Priority)
	assert.Equal(t, 100.0, trig.Snapshot.PreviousPrice)
	assert.Equal(t, 80.0, trig.Snapshot.CurrentPrice)
	assert.Equal(t, 20.0, trig.Snapshot.DropAmount)
	assert.Equal(t, 20.0, trig.Snapshot.DropPercentage)
	assert.Nil(t, trig.Snapshot.TargetPrice)
}

func TestDecide_DropUnderThreshold(t *testing.T) {
	_, ok := Decide(100, 95, item.AlertConfig{DropThresholdPercent: ptr(10)})
	assert.False(t, ok)
}

func TestDecide_TargetReached(t *testing.T) {
	trig, ok := Decide(100, 84, item.AlertConfig{DropThresholdPercent: ptr(50), TargetPrice: ptr(85)})
	require.True(t, ok)
	assert.Equal(t, alert.TypeTargetPrice, trig.Type)
	assert.Equal(t, alert.PriorityHigh, trig.Priority)
	require.NotNil(t, trig.Snapshot.TargetPrice)
	assert.Equal(t, 85.0, *trig.Snapshot.TargetPrice)
	assert.Equal(t, 16.0, trig.Snapshot.DropAmount)
	assert.Equal(t, 16.0, trig.Snapshot.DropPercentage)
}

func TestDecide_TargetWinsOverDrop(t *testing.T) {
	trig, ok := Decide(100, 40, item.AlertConfig{DropThresholdPercent: ptr(10), TargetPrice: ptr(50)})
	require.True(t, ok)
	assert.Equal(t, alert.TypeTargetPrice, trig.Type)
	assert.Equal(t, 60.0, trig.Snapshot.DropPercentage)
}

func TestDecide_TargetNotReachedFallsBackToDrop(t *testing.T) {
	trig, ok := Decide(100, 70, item.AlertConfig{DropThresholdPercent: ptr(10), TargetPrice: ptr(50)})
	require.True(t, ok)
	assert.Equal(t, alert.TypePriceDrop, trig.Type)
	assert.Equal(t, alert.PriorityHigh, trig.Priority)
}

func TestDecide_NoChange(t *testing.T) {
	_, ok := Decide(80, 80, item.AlertConfig{DropThresholdPercent: ptr(1), TargetPrice: ptr(100)})
	assert.False(t, ok)
}

func TestDecide_IncreaseWithoutTarget(t *testing.T) {
	_, ok := Decide(80, 100, item.AlertConfig{DropThresholdPercent: ptr(1)})
	assert.False(t, ok)
}

func TestDecide_DefaultThreshold(t *testing.T) {
	_, ok := Decide(100, 91, item.AlertConfig{})
	assert.False(t, ok)

	trig, ok := Decide(100, 90, item.AlertConfig{})
	require.True(t, ok)
	assert.Equal(t, 10.0, trig.Snapshot.DropPercentage)
}

func TestDecide_ZeroThresholdAlertsOnAnyDrop(t *testing.T) {
	trig, ok := Decide(100, 99.99, item.AlertConfig{DropThresholdPercent: ptr(0)})
	require.True(t, ok)
	assert.Equal(t, alert.PriorityLow, trig.Priority)
	assert.Equal(t, 0.01, trig.Snapshot.DropPercentage)
}

func TestDecide_BandsUseUnroundedPercentage(t *testing.T) {
	cfg := item.AlertConfig{DropThresholdPercent: ptr(10)}

	_, ok := Decide(100, 90.004, cfg)
	assert.False(t, ok, "a 9.996 percent drop stays under a 10 percent threshold")

	cases := []struct {
		newPrice float64
		want     alert.Priority
	}{
		{75.004, alert.PriorityMedium},
		{50.004, alert.PriorityHigh},
		{50, alert.PriorityUrgent},
	}
	for _, c := range cases {
		trig, ok := Decide(100, c.newPrice, cfg)
		require.True(t, ok, "new price %v", c.newPrice)
		assert.Equal(t, c.want, trig.Priority, "new price %v", c.newPrice)
	}

	trig, _ := Decide(100, 50.004, cfg)
	assert.Equal(t, 50.0, trig.Snapshot.DropPercentage, "snapshot keeps two decimals")
}

func TestDecide_RoundsPercentage(t *testing.T) {
	trig, ok := Decide(30, 19.99, item.AlertConfig{DropThresholdPercent: ptr(10)})
	require.True(t, ok)
	assert.Equal(t, 10.01, trig.Snapshot.DropAmount)
	assert.Equal(t, 33.37, trig.Snapshot.DropPercentage)
}

func TestDecide_ZeroBaseline(t *testing.T) {
	_, ok := Decide(0, 10, item.AlertConfig{})
	assert.False(t, ok)
}

func TestDropPriority(t *testing.T) {
	cases := []struct {
		pct  float64
		want alert.Priority
	}{
		{75, alert.PriorityUrgent},
		{50, alert.PriorityUrgent},
		{49.99, alert.PriorityHigh},
		{25, alert.PriorityHigh},
		{24.99, alert.PriorityMedium},
		{10, alert.PriorityMedium},
		{9.99, alert.PriorityLow},
		{1, alert.PriorityLow},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DropPriority(c.pct), "pct %v", c.pct)
	}
}

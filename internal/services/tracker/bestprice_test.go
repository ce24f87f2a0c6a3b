package tracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

func TestSelectBestPrice_Lowest(t *testing.T) {
	best, ok := SelectBestPrice([]item.Observation{
		{Source: "a", Price: 50, Available: true},
		{Source: "b", Price: 45, Available: true},
		{Source: "c", Price: 30, Available: false},
	})
	require.True(t, ok)
	assert.Equal(t, "b", best.Source)
	assert.Equal(t, 45.0, best.Price)
}

func TestSelectBestPrice_TieGoesToFirstName(t *testing.T) {
	best, ok := SelectBestPrice([]item.Observation{
		{Source: "b", Price: 45, Available: true},
		{Source: "a", Price: 45, Available: true},
	})
	require.True(t, ok)
	assert.Equal(t, "a", best.Source)
}

func TestSelectBestPrice_NothingUsable(t *testing.T) {
	_, ok := SelectBestPrice(nil)
	assert.False(t, ok)

	_, ok = SelectBestPrice([]item.Observation{
		{Source: "a", Price: 10, Available: false},
		{Source: "b", Price: -1, Available: true},
		{Source: "c", Price: math.NaN(), Available: true},
	})
	assert.False(t, ok)
}

func TestSelectBestPrice_ZeroIsAPrice(t *testing.T) {
	best, ok := SelectBestPrice([]item.Observation{
		{Source: "a", Price: 10, Available: true},
		{Source: "free", Price: 0, Available: true},
	})
	require.True(t, ok)
	assert.Equal(t, "free", best.Source)
}

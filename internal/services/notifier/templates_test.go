package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
)

func TestMessage(t *testing.T) {
	cases := []struct {
		name string
		a    alert.Alert
		want string
	}{
		{
			name: "drop",
			a:    alert.Alert{ProductName: "Kettle", Type: alert.TypePriceDrop, Snapshot: alert.Snapshot{CurrentPrice: 80, DropPercentage: 20}},
			want: "Kettle price dropped 20% to $80.00",
		},
		{
			name: "drop with fraction",
			a:    alert.Alert{ProductName: "Kettle", Type: alert.TypePriceDrop, Snapshot: alert.Snapshot{CurrentPrice: 19.99, DropPercentage: 33.37}},
			want: "Kettle price dropped 33.37% to $19.99",
		},
		{
			name: "target",
			a:    alert.Alert{ProductName: "Kettle", Type: alert.TypeTargetPrice, Snapshot: alert.Snapshot{CurrentPrice: 84}},
			want: "Kettle reached your target price of $84.00",
		},
		{
			name: "back in stock",
			a:    alert.Alert{ProductName: "Kettle", Type: alert.TypeBackInStock, Snapshot: alert.Snapshot{CurrentPrice: 12.5}},
			want: "Kettle is back in stock at $12.50",
		},
		{
			name: "increase",
			a:    alert.Alert{ProductName: "Kettle", Type: alert.TypePriceIncrease, Snapshot: alert.Snapshot{CurrentPrice: 110}},
			want: "Kettle price increased to $110.00",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Message(c.a))
		})
	}
}

func TestRender(t *testing.T) {
	c := Render(alert.Alert{ID: "a1", ItemID: "i1", ProductName: "Kettle", Type: alert.TypeTargetPrice, Snapshot: alert.Snapshot{CurrentPrice: 84}})
	assert.Equal(t, "Price alert: Kettle", c.Subject)
	assert.Equal(t, "Price alert", c.Title)
	assert.Equal(t, map[string]string{"alert_id": "a1", "item_id": "i1", "type": "target_price"}, c.Data)
}

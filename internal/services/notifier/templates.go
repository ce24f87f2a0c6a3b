package notifier

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
)

const (
	pushTitle     = "Price alert"
	subjectFormat = "Price alert: %s"
)

type Content struct {
	Subject string
	Title   string
	Body    string
	Data    map[string]string
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}

// Message is the human-readable line shared by every channel.
func Message(a alert.Alert) string {
	price := money(a.Snapshot.CurrentPrice)
	switch a.Type {
	case alert.TypePriceDrop:
		return fmt.Sprintf("%s price dropped %s%% to $%s", a.ProductName, percent(a.Snapshot.DropPercentage), price)
	case alert.TypeTargetPrice:
		return fmt.Sprintf("%s reached your target price of $%s", a.ProductName, price)
	case alert.TypeBackInStock:
		return fmt.Sprintf("%s is back in stock at $%s", a.ProductName, price)
	case alert.TypePriceIncrease:
		return fmt.Sprintf("%s price increased to $%s", a.ProductName, price)
	default:
		return fmt.Sprintf("%s is now $%s", a.ProductName, price)
	}
}

func Render(a alert.Alert) Content {
	return Content{
		Subject: fmt.Sprintf(subjectFormat, a.ProductName),
		Title:   pushTitle,
		Body:    Message(a),
		Data: map[string]string{
			"alert_id": a.ID,
			"item_id":  a.ItemID,
			"type":     string(a.Type),
		},
	}
}

package tracker

import (
	"github.com/shopspring/decimal"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

// Decide is the alert rule set for one price change. At most one trigger fires;
// a met target wins over the drop threshold.
func Decide(oldPrice, newPrice float64, cfg item.AlertConfig) (alert.Trigger, bool) {
	if newPrice == oldPrice {
		return alert.Trigger{}, false
	}

	snap := alert.Snapshot{
		PreviousPrice: oldPrice,
		CurrentPrice:  newPrice,
	}
	// pct stays unrounded for the threshold and the priority bands; only the
	// snapshot carries two decimals.
	pct := decimal.Zero
	if newPrice < oldPrice && oldPrice > 0 {
		old := decimal.NewFromFloat(oldPrice)
		diff := old.Sub(decimal.NewFromFloat(newPrice))
		pct = diff.Div(old).Mul(decimal.NewFromInt(100))
		snap.DropAmount = diff.Round(2).InexactFloat64()
		snap.DropPercentage = pct.Round(2).InexactFloat64()
	}

	if cfg.TargetPrice != nil && newPrice <= *cfg.TargetPrice {
		target := *cfg.TargetPrice
		snap.TargetPrice = &target
		return alert.Trigger{Type: alert.TypeTargetPrice, Priority: alert.PriorityHigh, Snapshot: snap}, true
	}

	if newPrice >= oldPrice || oldPrice <= 0 {
		return alert.Trigger{}, false
	}

	if pct.LessThan(decimal.NewFromFloat(cfg.DropThreshold())) {
		return alert.Trigger{}, false
	}
	return alert.Trigger{Type: alert.TypePriceDrop, Priority: DropPriority(pct.InexactFloat64()), Snapshot: snap}, true
}

func DropPriority(pct float64) alert.Priority {
	switch {
	case pct >= 50:
		return alert.PriorityUrgent
	case pct >= 25:
		return alert.PriorityHigh
	case pct >= 10:
		return alert.PriorityMedium
	default:
		return alert.PriorityLow
	}
}

package tracker

import (
	"math"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

// SelectBestPrice picks the lowest available price. Equal prices go to the
// source whose name sorts first. It reports false when no observation qualifies.
func SelectBestPrice(obs []item.Observation) (item.Observation, bool) {
	var (
		best  item.Observation
		found bool
	)
	for _, o := range obs {
		if !o.Available || o.Price < 0 || math.IsNaN(o.Price) || math.IsInf(o.Price, 0) {
			continue
		}
		switch {
		case !found:
			best, found = o, true
		case o.Price < best.Price:
			best = o
		case o.Price == best.Price && o.Source < best.Source:
			best = o
		}
	}
	return best, found
}

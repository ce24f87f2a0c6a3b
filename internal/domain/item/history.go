package item

import (
	"errors"
	"math"
	"time"
)

var (
	ErrNegativePrice  = errors.New("price must not be negative")
	ErrInvalidPrice   = errors.New("price is not a number")
	ErrNoObservations = errors.New("no source returned a price")
)

// RecordObservation appends a history entry and makes price the current one.
// The receiver is left untouched; history keeps the newest MaxHistory entries.
func (t TrackedItem) RecordObservation(price float64, source string, now time.Time) (TrackedItem, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return t, ErrInvalidPrice
	}
	if price < 0 {
		return t, ErrNegativePrice
	}

	out := t.Clone()
	out.History = append(out.History, PriceEntry{Price: price, At: now, Source: source})
	if n := len(out.History); n > MaxHistory {
		out.History = append([]PriceEntry(nil), out.History[n-MaxHistory:]...)
	}
	out.CurrentPrice = price
	out.LastChecked = now
	out.UpdatedAt = now
	return out, nil
}

// MarkChecked advances LastChecked without touching the price.
func (t TrackedItem) MarkChecked(now time.Time) TrackedItem {
	out := t.Clone()
	out.LastChecked = now
	out.UpdatedAt = now
	return out
}

// ApplySourceObservation stores the latest answer of the named source.
func (t TrackedItem) ApplySourceObservation(obs Observation) TrackedItem {
	out := t.Clone()
	for i := range out.Sources {
		if out.Sources[i].Name != obs.Source {
			continue
		}
		out.Sources[i].LastAvailable = obs.Available
		out.Sources[i].LastCheckedAt = obs.At
		if obs.Available {
			out.Sources[i].LastPrice = obs.Price
		}
	}
	return out
}

func (t TrackedItem) LowestPrice() float64 {
	if len(t.History) == 0 {
		return 0
	}
	low := t.History[0].Price
	for _, e := range t.History[1:] {
		low = math.Min(low, e.Price)
	}
	return low
}

func (t TrackedItem) HighestPrice() float64 {
	if len(t.History) == 0 {
		return 0
	}
	high := t.History[0].Price
	for _, e := range t.History[1:] {
		high = math.Max(high, e.Price)
	}
	return high
}

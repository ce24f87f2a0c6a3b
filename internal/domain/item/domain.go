package item

import "time"

type Frequency string

const (
	FrequencyHourly Frequency = "hourly"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Frequencies lists the polling tiers in the order a cycle gathers them.
var Frequencies = []Frequency{FrequencyHourly, FrequencyDaily, FrequencyWeekly}

// Normalize maps an unknown or empty tier to daily, the tier Interval assumes.
func (f Frequency) Normalize() Frequency {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return f
	}
	return FrequencyDaily
}

func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

type Status string

const (
	StatusActive     Status = "active"
	StatusPurchased  Status = "purchased"
	StatusRemoved    Status = "removed"
	StatusOutOfStock Status = "out_of_stock"
)

const (
	MaxHistory                  = 100
	DefaultDropThresholdPercent = 10.0
)

type Product struct {
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
}

type PriceEntry struct {
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
	Source string    `json:"source"`
}

type Source struct {
	Name          string    `json:"name"`
	Domain        string    `json:"domain"`
	URL           string    `json:"url"`
	Active        bool      `json:"active"`
	LastPrice     float64   `json:"last_price"`
	LastAvailable bool      `json:"last_available"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

type AlertConfig struct {
	// DropThresholdPercent is nil when the user never set one; 0 alerts on any drop.
	DropThresholdPercent *float64 `json:"drop_threshold_percent,omitempty"`
	TargetPrice          *float64 `json:"target_price,omitempty"`
	EmailEnabled         bool     `json:"email_enabled"`
	PushEnabled          bool     `json:"push_enabled"`
}

func (c AlertConfig) DropThreshold() float64 {
	if c.DropThresholdPercent == nil {
		return DefaultDropThresholdPercent
	}
	return max(*c.DropThresholdPercent, 0)
}

// TrackedItem is one user's watch on one product.
type TrackedItem struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Product        Product      `json:"product"`
	OriginalPrice  float64      `json:"original_price"`
	CurrentPrice   float64      `json:"current_price"`
	Currency       string       `json:"currency"`
	IsTracking     bool         `json:"is_tracking"`
	CheckFrequency Frequency    `json:"check_frequency"`
	LastChecked    time.Time    `json:"last_checked"`
	History        []PriceEntry `json:"history"`
	Sources        []Source     `json:"sources"`
	Alerts         AlertConfig  `json:"alerts"`
	Status         Status       `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Observation is one source's answer for one item.
type Observation struct {
	Source    string    `json:"source"`
	Price     float64   `json:"price"`
	Available bool      `json:"available"`
	At        time.Time `json:"at"`
}

func (t TrackedItem) Eligible() bool {
	return t.Status == StatusActive && t.IsTracking
}

// Due reports whether the item's last check is older than its tier interval.
func (t TrackedItem) Due(now time.Time) bool {
	if t.LastChecked.IsZero() {
		return true
	}
	return !t.LastChecked.After(now.Add(-t.CheckFrequency.Interval()))
}

// BaselinePrice is the price a new observation is compared against.
func (t TrackedItem) BaselinePrice() float64 {
	if t.CurrentPrice > 0 {
		return t.CurrentPrice
	}
	return t.OriginalPrice
}

func (t TrackedItem) ActiveSources() []Source {
	out := make([]Source, 0, len(t.Sources))
	for _, s := range t.Sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

func (t TrackedItem) Clone() TrackedItem {
	cp := t
	cp.History = append([]PriceEntry(nil), t.History...)
	cp.Sources = append([]Source(nil), t.Sources...)
	if t.Alerts.TargetPrice != nil {
		v := *t.Alerts.TargetPrice
		cp.Alerts.TargetPrice = &v
	}
	if t.Alerts.DropThresholdPercent != nil {
		v := *t.Alerts.DropThresholdPercent
		cp.Alerts.DropThresholdPercent = &v
	}
	return cp
}

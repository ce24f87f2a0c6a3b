package alert

import "time"

type Type string

const (
	TypePriceDrop     Type = "price_drop"
	TypeTargetPrice   Type = "target_price"
	TypeBackInStock   Type = "back_in_stock"
	TypePriceIncrease Type = "price_increase"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusDismissed Status = "dismissed"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

var Channels = []Channel{ChannelEmail, ChannelPush}

const (
	DefaultTTL         = 7 * 24 * time.Hour
	DefaultMaxAttempts = 3
)

// Snapshot is captured when the alert is created and never recomputed.
type Snapshot struct {
	PreviousPrice  float64  `json:"previous_price"`
	CurrentPrice   float64  `json:"current_price"`
	TargetPrice    *float64 `json:"target_price,omitempty"`
	DropAmount     float64  `json:"drop_amount"`
	DropPercentage float64  `json:"drop_percentage"`
}

type ChannelState struct {
	Sent      bool      `json:"sent"`
	SentAt    time.Time `json:"sent_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// Enabled says which delivery channels apply to an alert.
type Enabled struct {
	Email bool
	Push  bool
}

func (e Enabled) Has(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return e.Email
	case ChannelPush:
		return e.Push
	}
	return false
}

type Alert struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	ItemID      string       `json:"item_id"`
	ProductName string       `json:"product_name"`
	Currency    string       `json:"currency"`
	Type        Type         `json:"type"`
	Priority    Priority     `json:"priority"`
	Snapshot    Snapshot     `json:"snapshot"`
	Status      Status       `json:"status"`
	Email       ChannelState `json:"email"`
	Push        ChannelState `json:"push"`
	Read        bool         `json:"read"`
	ReadAt      time.Time    `json:"read_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	ResolvedAt  time.Time    `json:"resolved_at"`
}

// Trigger is what the decision engine hands over to create an alert.
type Trigger struct {
	Type     Type
	Priority Priority
	Snapshot Snapshot
}

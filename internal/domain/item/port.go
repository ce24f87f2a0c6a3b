package item

import (
	"context"
	"errors"
	"time"
)

// ErrNotTracked is returned by SaveTracking when the stored item was
// purchased, removed or paused after it was read.
var ErrNotTracked = errors.New("item no longer tracked")

type Repo interface {
	GetByID(ctx context.Context, id string) (*TrackedItem, error)
	ListByUser(ctx context.Context, userID string) ([]*TrackedItem, error)
	// FindDue returns eligible items of one tier whose LastChecked is not after cutoff.
	FindDue(ctx context.Context, freq Frequency, cutoff time.Time, limit int) ([]*TrackedItem, error)
	// Save writes the whole item; an unknown CheckFrequency is stored as daily.
	Save(ctx context.Context, t *TrackedItem) error
	// SaveTracking writes only the polling state (current price, last check,
	// history, sources) and only while the stored item is still eligible.
	SaveTracking(ctx context.Context, t *TrackedItem) error
}

// Fetcher asks one external source for the price of one item.
// Implementations enforce their own timeout.
type Fetcher interface {
	FetchPrice(ctx context.Context, t *TrackedItem, src Source) (Observation, error)
}

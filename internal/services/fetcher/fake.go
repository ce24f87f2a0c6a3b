package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

var ErrNoQuote = errors.New("fake: no quote for source")

type Quote struct {
	Price       float64
	Unavailable bool
	Err         error
}

// Fake answers from a fixed table keyed by item id and source name.
type Fake struct {
	mu     sync.Mutex
	quotes map[string]Quote
	calls  map[string]int
	echo   bool
	Now    func() time.Time

	// Hook, when set, runs inside every FetchPrice call before the quote is read.
	Hook func(t *item.TrackedItem, src item.Source)
}

var _ item.Fetcher = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{quotes: map[string]Quote{}, calls: map[string]int{}}
}

func key(itemID, source string) string { return itemID + "/" + source }

func (f *Fake) Set(itemID, source string, q Quote) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[key(itemID, source)] = q
	return f
}

// EchoLast makes sources without a quote repeat the item's current price,
// so a local run without real retailers still flows end to end.
func (f *Fake) EchoLast() *Fake {
	f.echo = true
	return f
}

func (f *Fake) Calls(itemID, source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key(itemID, source)]
}

func (f *Fake) FetchPrice(ctx context.Context, t *item.TrackedItem, src item.Source) (item.Observation, error) {
	if err := ctx.Err(); err != nil {
		return item.Observation{}, err
	}
	if f.Hook != nil {
		f.Hook(t, src)
	}
	f.mu.Lock()
	k := key(t.ID, src.Name)
	f.calls[k]++
	q, ok := f.quotes[k]
	f.mu.Unlock()

	if !ok {
		if !f.echo || t.BaselinePrice() <= 0 {
			return item.Observation{}, ErrNoQuote
		}
		q = Quote{Price: t.BaselinePrice()}
	}
	if q.Err != nil {
		return item.Observation{}, q.Err
	}
	now := time.Now().UTC()
	if f.Now != nil {
		now = f.Now()
	}
	return item.Observation{Source: src.Name, Price: q.Price, Available: !q.Unavailable, At: now}, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
)

var _ outbox.Repository = (*Outbox)(nil)

const (
	statusCreated    outbox.Status = "CREATED"
	statusInProgress outbox.Status = "IN_PROGRESS"
	statusSuccess    outbox.Status = "SUCCESS"
)

type Outbox struct {
	mu   sync.Mutex
	msgs map[string]*outbox.Message
	now  func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{msgs: make(map[string]*outbox.Message), now: time.Now}
}

// Enqueue ignores a key that is already stored.
func (o *Outbox) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.msgs[key]; ok {
		return nil
	}
	now := o.now()
	o.msgs[key] = &outbox.Message{
		IdempotencyKey: key,
		Kind:           kind,
		Data:           append([]byte(nil), data...),
		Status:         statusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

func (o *Outbox) PickBatch(_ context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	var cand []*outbox.Message
	for _, m := range o.msgs {
		stale := m.Status == statusInProgress && m.UpdatedAt.Before(now.Add(-inProgressTTL))
		if m.Status == statusCreated || stale {
			cand = append(cand, m)
		}
	}
	sort.Slice(cand, func(i, j int) bool {
		if !cand[i].CreatedAt.Equal(cand[j].CreatedAt) {
			return cand[i].CreatedAt.Before(cand[j].CreatedAt)
		}
		return cand[i].IdempotencyKey < cand[j].IdempotencyKey
	})
	cand = head(cand, batch)
	out := make([]outbox.Message, 0, len(cand))
	for _, m := range cand {
		m.Status = statusInProgress
		m.Attempts++
		m.UpdatedAt = now
		out = append(out, *m)
	}
	return out, nil
}

func (o *Outbox) MarkSuccess(_ context.Context, keys []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, k := range keys {
		if m, ok := o.msgs[k]; ok {
			m.Status = statusSuccess
			m.UpdatedAt = now
		}
	}
	return nil
}

// Kinds maps every stored key to its kind.
func (o *Outbox) Kinds() map[string]outbox.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]outbox.Kind, len(o.msgs))
	for k, m := range o.msgs {
		out[k] = m.Kind
	}
	return out
}

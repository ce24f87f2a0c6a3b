package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

var _ item.Repo = (*ItemRepo)(nil)

type ItemRepo struct {
	mu    sync.RWMutex
	items map[string]item.TrackedItem
	saves int
}

func NewItemRepo(seed ...item.TrackedItem) *ItemRepo {
	r := &ItemRepo{items: make(map[string]item.TrackedItem, len(seed))}
	for _, t := range seed {
		r.items[t.ID] = t.Clone()
	}
	return r
}

func (r *ItemRepo) GetByID(_ context.Context, id string) (*item.TrackedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := t.Clone()
	return &cp, nil
}

func (r *ItemRepo) ListByUser(_ context.Context, userID string) ([]*item.TrackedItem, error) {
	return r.filter(func(t item.TrackedItem) bool { return t.UserID == userID }, 0), nil
}

func (r *ItemRepo) FindDue(_ context.Context, freq item.Frequency, cutoff time.Time, limit int) ([]*item.TrackedItem, error) {
	return r.filter(func(t item.TrackedItem) bool {
		return t.Eligible() && t.CheckFrequency == freq && !t.LastChecked.After(cutoff)
	}, limit), nil
}

func (r *ItemRepo) Save(_ context.Context, t *item.TrackedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := t.Clone()
	cp.CheckFrequency = cp.CheckFrequency.Normalize()
	r.items[t.ID] = cp
	r.saves++
	return nil
}

func (r *ItemRepo) SaveTracking(_ context.Context, t *item.TrackedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[t.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.Eligible() {
		return item.ErrNotTracked
	}
	src := t.Clone()
	cur.CurrentPrice = src.CurrentPrice
	cur.LastChecked = src.LastChecked
	cur.History = src.History
	cur.Sources = src.Sources
	cur.UpdatedAt = src.UpdatedAt
	r.items[t.ID] = cur
	r.saves++
	return nil
}

// Saves counts Save and SaveTracking calls.
func (r *ItemRepo) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

// filter returns matches ordered by LastChecked (never checked first), then id.
func (r *ItemRepo) filter(keep func(item.TrackedItem) bool, limit int) []*item.TrackedItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*item.TrackedItem, 0)
	for _, t := range r.items {
		if keep(t) {
			cp := t.Clone()
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.LastChecked.Equal(b.LastChecked) {
			return a.LastChecked.Before(b.LastChecked)
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

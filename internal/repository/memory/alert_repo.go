package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
)

var _ alert.Repo = (*AlertRepo)(nil)

var ErrDuplicate = errors.New("duplicate alert id")

type AlertRepo struct {
	mu     sync.RWMutex
	alerts map[string]alert.Alert
}

func NewAlertRepo() *AlertRepo {
	return &AlertRepo{alerts: make(map[string]alert.Alert)}
}

func (r *AlertRepo) Create(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[a.ID]; ok {
		return ErrDuplicate
	}
	r.alerts[a.ID] = *a
	return nil
}

// Save keeps the stored snapshot and overwrites the lifecycle fields.
func (r *AlertRepo) Save(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.alerts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.Status.CanBecome(a.Status) {
		return alert.ErrAlreadyResolved
	}
	next := *a
	next.Snapshot = cur.Snapshot
	next.Type = cur.Type
	next.Priority = cur.Priority
	next.CreatedAt = cur.CreatedAt
	next.ExpiresAt = cur.ExpiresAt
	r.alerts[a.ID] = next
	return nil
}

func (r *AlertRepo) GetByID(_ context.Context, id string) (*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *AlertRepo) ListByUser(_ context.Context, userID string, limit int) ([]*alert.Alert, error) {
	out := r.filter(func(a alert.Alert) bool { return a.UserID == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return head(out, limit), nil
}

func (r *AlertRepo) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*alert.Alert, error) {
	out := r.filter(func(a alert.Alert) bool { return a.Status == alert.StatusPending && a.Expired(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return head(out, limit), nil
}

func (r *AlertRepo) ListRedeliverable(_ context.Context, now time.Time, maxAttempts, limit int) ([]*alert.Alert, error) {
	out := r.filter(func(a alert.Alert) bool {
		if a.Status != alert.StatusPending || a.Expired(now) {
			return false
		}
		return !a.ChannelFinal(alert.ChannelEmail, maxAttempts) || !a.ChannelFinal(alert.ChannelPush, maxAttempts)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return head(out, limit), nil
}

// All returns every stored alert ordered by creation time.
func (r *AlertRepo) All() []alert.Alert {
	list := r.filter(func(alert.Alert) bool { return true })
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	out := make([]alert.Alert, 0, len(list))
	for _, a := range list {
		out = append(out, *a)
	}
	return out
}

func (r *AlertRepo) filter(keep func(alert.Alert) bool) []*alert.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*alert.Alert
	for _, a := range r.alerts {
		if keep(a) {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func head[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

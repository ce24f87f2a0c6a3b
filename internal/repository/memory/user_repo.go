package memory

import (
	"context"
	"sync"

	"github.com/NordCoder/Pricewatch/internal/domain/user"
)

var _ user.Directory = (*Users)(nil)

type Users struct {
	mu       sync.RWMutex
	profiles map[string]user.Profile
}

func NewUsers(seed ...user.Profile) *Users {
	u := &Users{profiles: make(map[string]user.Profile, len(seed))}
	for _, p := range seed {
		u.profiles[p.UserID] = p
	}
	return u
}

func (u *Users) Put(p user.Profile) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.profiles[p.UserID] = p
}

func (u *Users) Profile(_ context.Context, userID string) (*user.Profile, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	p, ok := u.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

package user

import "context"

// Directory is the read-only view of the user store.
type Directory interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Pricewatch/internal/domain/user"
)

var _ user.Directory = (*UserRepo)(nil)

// UserRepo reads notification contacts and preferences owned by the user service.
type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const qUserProfile = `
SELECT id, name, email, telegram_chat_id, email_enabled, push_enabled
FROM users
WHERE id = $1;`

func (r *UserRepo) Profile(ctx context.Context, userID string) (*user.Profile, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		p    user.Profile
		chat *int64
	)
	err := r.db.execQueryer(ctx).QueryRow(ctx, qUserProfile, userID).
		Scan(&p.UserID, &p.Name, &p.Email, &chat, &p.Preferences.EmailEnabled, &p.Preferences.PushEnabled)
	if err != nil {
		if errors.Is(mapErr(err), ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user profile: %w", err)
	}
	if chat != nil {
		p.TelegramChatID = *chat
	}
	return &p, nil
}

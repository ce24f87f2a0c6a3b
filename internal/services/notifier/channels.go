package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/domain/user"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to user.Contact, subject, body string) error
}

type PushSender interface {
	SendPush(ctx context.Context, to user.Contact, title, body string, data map[string]string) error
}

// LogChannel stands in for a transport that is not configured. Every send succeeds.
type LogChannel struct {
	Log *zap.Logger
}

func (l LogChannel) SendEmail(_ context.Context, to user.Contact, subject, body string) error {
	l.Log.Info("email (log channel)",
		zap.String("user_id", to.UserID), zap.String("to", to.Email),
		zap.String("subject", subject), zap.String("body", body))
	return nil
}

func (l LogChannel) SendPush(_ context.Context, to user.Contact, title, body string, data map[string]string) error {
	l.Log.Info("push (log channel)",
		zap.String("user_id", to.UserID), zap.String("title", title),
		zap.String("body", body), zap.Any("data", data))
	return nil
}

package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/domain/user"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
)

var ErrNoChat = errors.New("user has no linked telegram chat")

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPush delivers push alerts as Telegram bot messages.
type TelegramPush struct {
	bot botSender
	log *zap.Logger
}

func NewTelegramPush(token string, log *zap.Logger) (*TelegramPush, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info("telegram bot authorized", zap.String("bot", bot.Self.UserName))
	return &TelegramPush{bot: bot, log: log.With(zap.String("component", "notifier.telegram"))}, nil
}

func (t *TelegramPush) SendPush(ctx context.Context, to user.Contact, title, body string, data map[string]string) error {
	if to.TelegramChatID == 0 {
		return retry.Permanent{Err: ErrNoChat}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(to.TelegramChatID, pushText(title, body, data))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn("telegram send failed", zap.Int64("chat_id", to.TelegramChatID), zap.Error(err))
		return err
	}
	return nil
}

func pushText(title, body string, data map[string]string) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	if len(data) == 0 {
		return sb.String()
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("\n")
	for _, k := range keys {
		sb.WriteString("\n")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(data[k])
	}
	return sb.String()
}

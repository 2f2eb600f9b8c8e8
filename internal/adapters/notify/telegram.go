package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// messageSender is the part of tgbotapi.BotAPI the notifier uses
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends notifications to a Telegram chat
type TelegramNotifier struct {
	api    messageSender
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier logs in with the bot token
func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Telegram notifier ready", zap.String("bot", api.Self.UserName))
	return &TelegramNotifier{api: api, chatID: chatID, logger: logger}, nil
}

// Notify sends an HTML message with the title in bold and the deep link below
func (t *TelegramNotifier) Notify(ctx context.Context, note *core.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, format(note))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.DisableNotification = note.Priority == "low" || note.Priority == "min"

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func format(note *core.Notification) string {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(note.Title), html.EscapeString(note.Message))
	if note.DeepLink != "" {
		text += "\n" + html.EscapeString(note.DeepLink)
	}
	return text
}

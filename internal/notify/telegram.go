// Package notify posts operational alerts about bookings and payments to a Telegram chat.
package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hirelink/booking-core/internal/events"
	"go.uber.org/zap"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier is an events.Publisher that forwards the events ops care
// about to one chat. Other events are ignored.
type TelegramNotifier struct {
	sender messageSender
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramNotifier(b, chatID, logger), nil
}

func newTelegramNotifier(sender messageSender, chatID int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: logger}
}

// Publish sends a message for events formatEvent knows and skips the rest.
func (n *TelegramNotifier) Publish(ctx context.Context, ev events.Event) error {
	text, ok := formatEvent(ev)
	if !ok {
		return nil
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram alert %s: %w", ev.Type, err)
	}

	n.logger.Debug("Telegram alert sent", zap.String("event", string(ev.Type)), zap.String("key", ev.Key))
	return nil
}

func (n *TelegramNotifier) Close() error { return nil }

package notify

import (
	"complaintdesk/backend/internal/localization"
	"complaintdesk/backend/internal/models"
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the part of *tgbotapi.BotAPI used here.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short alert for every notification to an admin chat.
type TelegramNotifier struct {
	Bot       MessageSender
	ChatID    int64
	Language  string
	Localizer *localization.Localizer
}

// NewTelegramNotifier authorizes the bot token and returns a notifier for chatID.
func NewTelegramNotifier(token string, chatID int64, l *localization.Localizer) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	bot.Debug = false
	return &TelegramNotifier{Bot: bot, ChatID: chatID, Language: localization.DefaultLanguage, Localizer: l}, nil
}

func (n *TelegramNotifier) Dispatch(ctx context.Context, p Payload) error {
	var text string
	switch p.Type {
	case models.NotificationComplaintCreated:
		text = n.Localizer.Format(n.Language, "telegram.created", p.StudentName, p.ComplaintTitle, ShortID(p.ComplaintID))
	case models.NotificationStatusUpdated:
		text = n.Localizer.Format(n.Language, "telegram.updated", p.ComplaintTitle, ShortID(p.ComplaintID), p.Status)
	default:
		return fmt.Errorf("unknown notification type %q", p.Type)
	}

	if _, err := n.Bot.Send(tgbotapi.NewMessage(n.ChatID, text)); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

// Notifier шлёт служебные события администратору в личный чат.
type Notifier struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
	log         zerolog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт нотификатора. При нулевом adminChatID уведомления
// молча выключены.
func NewNotifier(bot *tgbotapi.BotAPI, adminChatID int64, log zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, adminChatID: adminChatID, log: log}
}

// NotifyAdmin отправляет событие оператору.
func (n *Notifier) NotifyAdmin(ctx context.Context, event domain.AdminEvent) error {
	if n.adminChatID == 0 {
		return nil
	}
	var text string
	switch event.Kind {
	case domain.AdminEventGiveUp:
		text = fmt.Sprintf("⚠️ Пост %s отклонён: %s", event.PostID, event.Text)
	case domain.AdminEventCorruptState:
		text = "🛑 Леджер повреждён, планирование остановлено: " + event.Text
	default:
		text = event.Text
	}
	msg := tgbotapi.NewMessage(n.adminChatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("отправка уведомления: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender часть *bot.Bot, нужная sink'у
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup загружает получателей уведомления
type UserLookup interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
}

// TelegramSink отправляет сообщение каждому участнику события, у которого есть telegram_id.
// Инициатор события сообщение не получает.
type TelegramSink struct {
	sender MessageSender
	users  UserLookup
}

func NewTelegramSink(sender MessageSender, users UserLookup) *TelegramSink {
	return &TelegramSink{sender: sender, users: users}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, event model.Event) error {
	text := EventText(event)
	if text == "" {
		return nil
	}

	recipients := make([]int64, 0, len(event.SubjectIDs))
	for _, id := range event.SubjectIDs {
		if id != event.ActorID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	users, err := s.users.GetByIDs(ctx, recipients)
	if err != nil {
		return fmt.Errorf("get recipients: %w", err)
	}

	var errs []error
	for _, u := range users {
		if u.TelegramID == nil {
			continue
		}
		_, err := s.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: *u.TelegramID,
			Text:   text,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send to user %d: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

// EventText возвращает текст уведомления; пустая строка для неизвестных событий
func EventText(event model.Event) string {
	switch event.Type {
	case model.EventRequestCreated:
		return fmt.Sprintf("📩 Новая заявка на связь #%d\n\nПосмотреть заявки: /requests", event.EntityID)
	case model.EventRequestApproved:
		return fmt.Sprintf("✅ Заявка #%d одобрена\n\nВаши связи: /connections", event.EntityID)
	case model.EventRequestDeclined:
		return fmt.Sprintf("❌ Заявка #%d отклонена", event.EntityID)
	case model.EventRequestReminder:
		return fmt.Sprintf("⏰ Заявка #%d всё ещё ждёт ответа\n\nПосмотреть заявки: /requests", event.EntityID)
	case model.EventConnectionCreated:
		return fmt.Sprintf("🤝 Установлена новая связь #%d\n\nВаши связи: /connections", event.EntityID)
	case model.EventConnectionTerminated:
		return fmt.Sprintf("🔚 Связь #%d завершена", event.EntityID)
	default:
		return ""
	}
}

package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/careconnect/internal/apperr"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// ParseIDFromCallback извлекает ID из callback data
// Например: "req_approve:123" -> 123
func ParseIDFromCallback(data string) (int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	return id, nil
}

// currentUser находит пользователя по telegram id; ErrUserNotFound, если его нет
func (h *Handlers) currentUser(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := h.userService.GetByTelegramID(ctx, telegramID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// logFailure: бизнес-отказы пишутся в Info, остальное в Error
func (h *Handlers) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error(msg, fields...)
		return
	}
	h.logger.Info(msg, append(fields, zap.String("kind", string(apperr.KindOf(err))))...)
}

// Messenger часть *bot.Bot, через которую хендлеры отвечают пользователю
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

// sendText отправляет HTML сообщение; ошибка отправки только логируется
func (h *Handlers) sendText(ctx context.Context, b Messenger, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// AnswerCallback отвечает на callback query (без alert)
func (h *Handlers) AnswerCallback(ctx context.Context, b Messenger, callbackID string, text string) {
	h.answerCallback(ctx, b, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

// AnswerCallbackAlert отвечает на callback query всплывающим окном
func (h *Handlers) AnswerCallbackAlert(ctx context.Context, b Messenger, callbackID string, text string) {
	h.answerCallback(ctx, b, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

func (h *Handlers) answerCallback(ctx context.Context, b Messenger, params *bot.AnswerCallbackQueryParams) {
	if _, err := b.AnswerCallbackQuery(ctx, params); err != nil {
		h.logger.Warn("Failed to answer callback",
			zap.String("callback_id", params.CallbackQueryID),
			zap.Bool("alert", params.ShowAlert),
			zap.Error(err))
	}
}

// messageFromCallback извлекает доступное сообщение из callback query
func messageFromCallback(callback *models.CallbackQuery) *models.Message {
	if callback.Message.Message != nil {
		return callback.Message.Message
	}
	return nil
}

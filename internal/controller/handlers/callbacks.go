package handlers

import (
	"context"
	"strings"

	"github.com/Freeeeeet/careconnect/internal/controller/keyboard"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleCallbackQuery распределяет нажатия inline кнопок
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}
	data := callback.Data

	h.logger.Debug("Routing callback",
		zap.String("data", data),
		zap.Int64("telegram_id", callback.From.ID))

	switch {
	case strings.HasPrefix(data, keyboard.ApproveRequest):
		h.handleProcessRequest(ctx, b, callback, model.RequestActionApprove)
	case strings.HasPrefix(data, keyboard.DeclineRequest):
		h.handleProcessRequest(ctx, b, callback, model.RequestActionDecline)
	case strings.HasPrefix(data, keyboard.EndConnection):
		h.handleEndConnection(ctx, b, callback)
	case data == keyboard.Noop:
		h.AnswerCallback(ctx, b, callback.ID, "")
	default:
		h.logger.Warn("Unknown callback",
			zap.String("data", data),
			zap.Int64("telegram_id", callback.From.ID))
		h.AnswerCallback(ctx, b, callback.ID, "❌ Неизвестная команда")
	}
}

// handleProcessRequest одобряет или отклоняет заявку и обновляет список
func (h *Handlers) handleProcessRequest(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, action model.RequestAction) {
	user, err := h.currentUser(ctx, callback.From.ID)
	if err != nil {
		h.AnswerCallbackAlert(ctx, b, callback.ID, ErrorMessage(err))
		return
	}

	requestID, err := ParseIDFromCallback(callback.Data)
	if err != nil {
		h.AnswerCallbackAlert(ctx, b, callback.ID, ErrorMessage(err))
		return
	}

	if _, err := h.requestService.ProcessRequest(ctx, requestID, action, user.ID); err != nil {
		h.logFailure("Failed to process request", err,
			zap.Int64("request_id", requestID),
			zap.String("action", string(action)),
			zap.Int64("user_id", user.ID))
		h.AnswerCallbackAlert(ctx, b, callback.ID, ErrorMessage(err))
		return
	}

	if action == model.RequestActionApprove {
		h.AnswerCallbackAlert(ctx, b, callback.ID, "✅ Заявка одобрена")
	} else {
		h.AnswerCallbackAlert(ctx, b, callback.ID, "❌ Заявка отклонена")
	}

	if !user.HasRole(model.RoleTherapist) {
		return
	}
	text, markup, err := h.renderPendingRequests(ctx, user)
	if err != nil {
		h.logFailure("Failed to reload requests", err, zap.Int64("user_id", user.ID))
		return
	}
	h.editCallbackMessage(ctx, b, callback, text, markup)
}

// handleEndConnection завершает связь и обновляет список
func (h *Handlers) handleEndConnection(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	user, err := h.currentUser(ctx, callback.From.ID)
	if err != nil {
		h.AnswerCallbackAlert(ctx, b, callback.ID, ErrorMessage(err))
		return
	}

	connectionID, err := ParseIDFromCallback(callback.Data)
	if err != nil {
		h.AnswerCallbackAlert(ctx, b, callback.ID, ErrorMessage(err))
		return
	}

	if _, err := h.connectionService.TerminateConnection(ctx, connectionID, user.ID); err != nil {
		h.logFailure("Failed to terminate connection", err,
			zap.Int64("connection_id", connectionID),
			zap.Int64("user_id", user.ID))
		h.AnswerCallbackAlert(ctx, b, callback.ID, ErrorMessage(err))
		return
	}

	h.AnswerCallbackAlert(ctx, b, callback.ID, "🔚 Связь завершена")

	text, markup, err := h.renderConnections(ctx, user)
	if err != nil {
		h.logFailure("Failed to reload connections", err, zap.Int64("user_id", user.ID))
		return
	}
	h.editCallbackMessage(ctx, b, callback, text, markup)
}

func (h *Handlers) editCallbackMessage(ctx context.Context, b Messenger, callback *models.CallbackQuery, text string, markup *models.InlineKeyboardMarkup) {
	msg := messageFromCallback(callback)
	if msg == nil {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := b.EditMessageText(ctx, params); err != nil {
		h.logger.Warn("Failed to edit message", zap.Int("message_id", msg.ID), zap.Error(err))
	}
}

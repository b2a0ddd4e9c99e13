package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/careconnect/internal/controller/keyboard"
	"github.com/Freeeeeet/careconnect/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const maxButtons = 5

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := h.currentUser(ctx, update.Message.From.ID)
	if err != nil {
		h.sendText(ctx, b, chatID, ErrorMessage(err), nil)
		return
	}

	pending := 0
	if user.HasRole(model.RoleTherapist) {
		pending, err = h.requestService.CountPendingRequests(ctx, user.ID)
		if err != nil {
			h.logger.Error("Failed to count pending requests", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	h.sendText(ctx, b, chatID, StartText(user, pending), nil)
}

// StartText приветствие с командами для роли пользователя
func StartText(user *model.User, pending int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 Привет, %s!\n\n", html.EscapeString(user.DisplayName()))

	switch user.Role {
	case model.RoleTherapist:
		if pending > 0 {
			fmt.Fprintf(&sb, "📩 У вас %d %s на связь.\n\n", pending, PluralizeRequests(pending))
		}
		sb.WriteString("/requests - Заявки, ожидающие ответа\n")
	case model.RoleGuardian:
		sb.WriteString("/requests - Мои заявки\n")
	}

	sb.WriteString("/connections - Активные связи\n")
	sb.WriteString("/help - Справка")
	return sb.String()
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/start - Начать работу с ботом\n" +
		"/requests - Заявки на связь\n" +
		"/connections - Активные связи\n" +
		"/help - Показать эту справку\n\n" +
		"Специалист одобряет или отклоняет заявки кнопками ✅ и ❌.\n" +
		"Связь можно завершить кнопкой 🔚 в списке /connections."

	h.sendText(ctx, b, update.Message.Chat.ID, helpText, nil)
}

// HandleRequests обрабатывает команду /requests
func (h *Handlers) HandleRequests(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := h.currentUser(ctx, update.Message.From.ID)
	if err != nil {
		h.sendText(ctx, b, chatID, ErrorMessage(err), nil)
		return
	}

	var (
		text   string
		markup *models.InlineKeyboardMarkup
	)
	switch {
	case user.HasRole(model.RoleTherapist):
		text, markup, err = h.renderPendingRequests(ctx, user)
	case user.HasRole(model.RoleGuardian):
		text, err = h.renderOwnRequests(ctx, user)
	default:
		text = "ℹ️ Заявки доступны специалистам и опекунам"
	}
	if err != nil {
		h.logFailure("Failed to load requests", err, zap.Int64("user_id", user.ID))
		h.sendText(ctx, b, chatID, ErrorMessage(err), nil)
		return
	}

	h.sendText(ctx, b, chatID, text, markup)
}

// HandleConnections обрабатывает команду /connections
func (h *Handlers) HandleConnections(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := h.currentUser(ctx, update.Message.From.ID)
	if err != nil {
		h.sendText(ctx, b, chatID, ErrorMessage(err), nil)
		return
	}

	text, markup, err := h.renderConnections(ctx, user)
	if err != nil {
		h.logFailure("Failed to load connections", err, zap.Int64("user_id", user.ID))
		h.sendText(ctx, b, chatID, ErrorMessage(err), nil)
		return
	}

	h.sendText(ctx, b, chatID, text, markup)
}

// renderPendingRequests список pending заявок терапевта с кнопками
func (h *Handlers) renderPendingRequests(ctx context.Context, therapist *model.User) (string, *models.InlineKeyboardMarkup, error) {
	requests, err := h.requestService.GetPendingRequests(ctx, therapist.ID)
	if err != nil {
		return "", nil, err
	}

	ids := make([]int64, 0, len(requests)*2)
	for _, req := range requests {
		ids = append(ids, req.RequesterID)
		if req.TargetClientID != nil {
			ids = append(ids, *req.TargetClientID)
		}
	}
	users, err := h.userService.GetByIDs(ctx, ids)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📩 <b>Заявки на связь</b> (%d)\n\n", len(requests))
	if len(requests) == 0 {
		sb.WriteString("Новых заявок нет.")
	}

	kb := keyboard.NewBuilder()
	for i, req := range requests {
		sb.WriteString(FormatPendingRequest(i+1, req, users))
		sb.WriteString("\n")

		if i < maxButtons {
			label := fmt.Sprintf("%d. %s", i+1, truncate(displayName(users[req.RequesterID], req.RequesterID), 15))
			kb.Row(keyboard.RequestRow(label, req.ID)...)
		}
	}

	return sb.String(), kb.Build(), nil
}

// renderOwnRequests список заявок опекуна со статусами
func (h *Handlers) renderOwnRequests(ctx context.Context, guardian *model.User) (string, error) {
	requests, err := h.requestService.GetRequesterRequests(ctx, guardian.ID)
	if err != nil {
		return "", err
	}

	ids := make([]int64, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.TargetTherapistID)
	}
	users, err := h.userService.GetByIDs(ctx, ids)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Мои заявки</b> (%d)\n\n", len(requests))
	if len(requests) == 0 {
		sb.WriteString("Вы ещё не отправляли заявок.")
	}
	for _, req := range requests {
		sb.WriteString(FormatOwnRequest(req, users))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// renderConnections активные связи пользователя с кнопками завершения
func (h *Handlers) renderConnections(ctx context.Context, user *model.User) (string, *models.InlineKeyboardMarkup, error) {
	views, err := h.connectionService.ListConnections(ctx, user.ID, true)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🤝 <b>Активные связи</b> (%d)\n\n", len(views))
	if len(views) == 0 {
		sb.WriteString("Активных связей нет.")
	}

	kb := keyboard.NewBuilder()
	for i, view := range views {
		sb.WriteString(FormatConnection(view, user.ID))
		sb.WriteString("\n")

		if i < maxButtons {
			kb.Row(keyboard.ConnectionRow(truncate(connectionPeer(view, user.ID), 20), view.Connection.ID)...)
		}
	}

	return sb.String(), kb.Build(), nil
}

package handlers

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/Freeeeeet/careconnect/internal/model"
)

// StatusDisplay содержит emoji и текст для отображения статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

func RequestStatusDisplay(status model.RequestStatus) StatusDisplay {
	displays := map[model.RequestStatus]StatusDisplay{
		model.RequestStatusPending:  {"⏳", "Ожидает ответа"},
		model.RequestStatusApproved: {"✅", "Одобрена"},
		model.RequestStatusDeclined: {"❌", "Отклонена"},
	}
	if d, ok := displays[status]; ok {
		return d
	}
	return StatusDisplay{"❓", "Неизвестно"}
}

func ConnectionStatusDisplay(status model.ConnectionStatus) StatusDisplay {
	switch status {
	case model.ConnectionStatusActive:
		return StatusDisplay{"🟢", "Активна"}
	case model.ConnectionStatusTerminated:
		return StatusDisplay{"⚫️", "Завершена"}
	default:
		return StatusDisplay{"❓", "Неизвестно"}
	}
}

// PluralizeRequests возвращает правильное склонение слова "заявка"
func PluralizeRequests(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "заявка"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "заявки"
	}
	return "заявок"
}

func displayName(u *model.User, id int64) string {
	if u == nil {
		return "#" + strconv.FormatInt(id, 10)
	}
	return u.DisplayName()
}

// FormatPendingRequest форматирует заявку для терапевта (HTML)
func FormatPendingRequest(n int, req *model.ConnectionRequest, users map[int64]*model.User) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>%d. %s</b>", n, html.EscapeString(displayName(users[req.RequesterID], req.RequesterID)))
	if req.RequestType == model.RequestTypeGuardianChildAssignment && req.TargetClientID != nil {
		fmt.Fprintf(&sb, " → 👶 %s", html.EscapeString(displayName(users[*req.TargetClientID], *req.TargetClientID)))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "📅 Отправлена: %s\n", req.CreatedAt.Format("02.01.2006 15:04"))

	if req.Message != "" {
		fmt.Fprintf(&sb, "💬 <i>%s</i>\n", html.EscapeString(req.Message))
	} else {
		sb.WriteString("💬 <i>Сообщение не указано</i>\n")
	}

	return sb.String()
}

// FormatOwnRequest форматирует заявку для её автора (HTML)
func FormatOwnRequest(req *model.ConnectionRequest, users map[int64]*model.User) string {
	status := RequestStatusDisplay(req.Status)
	return fmt.Sprintf("%s Заявка #%d к %s: %s",
		status.Emoji,
		req.ID,
		html.EscapeString(displayName(users[req.TargetTherapistID], req.TargetTherapistID)),
		status.Text,
	)
}

// FormatConnection форматирует связь с точки зрения пользователя viewerID (HTML)
func FormatConnection(view *model.ConnectionView, viewerID int64) string {
	status := ConnectionStatusDisplay(view.Connection.Status)
	return fmt.Sprintf("%s %s, с %s",
		status.Emoji,
		html.EscapeString(connectionPeer(view, viewerID)),
		view.Connection.AssignedAt.Format("02.01.2006"),
	)
}

// connectionPeer вторая сторона связи без разметки, годится для подписи кнопки
func connectionPeer(view *model.ConnectionView, viewerID int64) string {
	c := view.Connection
	if c.TherapistID == viewerID {
		other := displayName(view.Client, c.ClientID)
		if c.ClientType == model.ClientTypeChild {
			other = "👶 " + other
		}
		return other
	}

	other := "🩺 " + displayName(view.Therapist, c.TherapistID)
	if c.ClientID != viewerID {
		other += " ↔ " + displayName(view.Client, c.ClientID)
	}
	return other
}

// truncate обрезает подпись кнопки по рунам
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

package keyboard

import (
	"fmt"

	"github.com/go-telegram/bot/models"
)

// Префиксы callback data; после двоеточия идёт ID
const (
	ApproveRequest = "req_approve:" // req_approve:123
	DeclineRequest = "req_decline:" // req_decline:123
	EndConnection  = "conn_end:"    // conn_end:123
	Noop           = "noop"
)

// Builder упрощает создание inline клавиатур
type Builder struct {
	rows [][]models.InlineKeyboardButton
}

func NewBuilder() *Builder {
	return &Builder{
		rows: make([][]models.InlineKeyboardButton, 0),
	}
}

// Row добавляет ряд кнопок; пустой ряд пропускается
func (b *Builder) Row(buttons ...models.InlineKeyboardButton) *Builder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

func (b *Builder) Len() int {
	return len(b.rows)
}

// Build возвращает клавиатуру; nil, если кнопок нет
func (b *Builder) Build() *models.InlineKeyboardMarkup {
	if len(b.rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: b.rows,
	}
}

func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// RequestRow: подпись заявки и кнопки одобрить/отклонить
func RequestRow(label string, requestID int64) []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{
		Button(label, Noop),
		Button("✅", fmt.Sprintf("%s%d", ApproveRequest, requestID)),
		Button("❌", fmt.Sprintf("%s%d", DeclineRequest, requestID)),
	}
}

// ConnectionRow: подпись связи и кнопка завершения
func ConnectionRow(label string, connectionID int64) []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{
		Button(label, Noop),
		Button("🔚 Завершить", fmt.Sprintf("%s%d", EndConnection, connectionID)),
	}
}

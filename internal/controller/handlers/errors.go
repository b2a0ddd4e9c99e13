package handlers

import (
	"errors"

	"github.com/Freeeeeet/careconnect/internal/apperr"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidFormat = errors.New("invalid callback format")
	ErrNoMessage     = errors.New("no message in callback")
)

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return "❌ Вы не зарегистрированы. Обратитесь к администратору"
	case errors.Is(err, ErrInvalidFormat):
		return "❌ Неверный формат данных"
	case errors.Is(err, ErrNoMessage):
		return "❌ Ошибка обработки сообщения"
	}

	switch apperr.KindOf(err) {
	case apperr.KindInvalidRole:
		return "❌ Эта функция недоступна для вашей роли"
	case apperr.KindInactiveUser:
		return "❌ Аккаунт не активен"
	case apperr.KindOwnership:
		return "❌ Можно прикреплять только своих детей"
	case apperr.KindDuplicateConnection:
		return "⚠️ Связь с этим специалистом уже существует"
	case apperr.KindDuplicateRequest:
		return "⚠️ Такая заявка уже ожидает ответа"
	case apperr.KindConnectionAlreadyExists:
		return "⚠️ Вы уже связаны с этим специалистом"
	case apperr.KindPrerequisiteNotMet:
		return "❌ Сначала нужна связь опекуна с этим специалистом"
	case apperr.KindUnauthorized:
		return "❌ Доступ запрещен"
	case apperr.KindAlreadyProcessed:
		return "⚠️ Заявка уже обработана"
	case apperr.KindAlreadyTerminated:
		return "⚠️ Связь уже завершена"
	case apperr.KindNotFound:
		return "❌ Не найдено"
	case apperr.KindValidation:
		return "❌ Неверные данные"
	default:
		return "❌ Произошла ошибка. Попробуйте позже"
	}
}

// Package apperr описывает бизнес-ошибки workflow: вид ошибки, сообщение для пользователя и детали.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidRole             Kind = "invalid_role"
	KindInactiveUser            Kind = "inactive_user"
	KindOwnership               Kind = "ownership"
	KindDuplicateConnection     Kind = "duplicate_connection"
	KindDuplicateRequest        Kind = "duplicate_request"
	KindConnectionAlreadyExists Kind = "connection_already_exists"
	KindPrerequisiteNotMet      Kind = "prerequisite_not_met"
	KindUnauthorized            Kind = "unauthorized"
	KindAlreadyProcessed        Kind = "already_processed"
	KindAlreadyTerminated       Kind = "already_terminated"
	KindNotFound                Kind = "not_found"
	KindValidation              Kind = "validation"
	KindInternal                Kind = "internal"
)

// Error структурированная ошибка, которую сервисы возвращают наружу
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду, чтобы работал errors.Is(err, apperr.ErrNotFound)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// With добавляет деталь к ошибке и возвращает её же
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New создаёт ошибку заданного вида
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf создаёт ошибку с форматированным сообщением
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает техническую ошибку
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Эталоны для errors.Is
var (
	ErrInvalidRole             = &Error{Kind: KindInvalidRole}
	ErrInactiveUser            = &Error{Kind: KindInactiveUser}
	ErrOwnership               = &Error{Kind: KindOwnership}
	ErrDuplicateConnection     = &Error{Kind: KindDuplicateConnection}
	ErrDuplicateRequest        = &Error{Kind: KindDuplicateRequest}
	ErrConnectionAlreadyExists = &Error{Kind: KindConnectionAlreadyExists}
	ErrPrerequisiteNotMet      = &Error{Kind: KindPrerequisiteNotMet}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrAlreadyProcessed        = &Error{Kind: KindAlreadyProcessed}
	ErrAlreadyTerminated       = &Error{Kind: KindAlreadyTerminated}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrValidation              = &Error{Kind: KindValidation}
)

// KindOf возвращает вид ошибки; всё, что не *Error, считается внутренней ошибкой
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As достаёт *Error из цепочки
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

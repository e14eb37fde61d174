package domain

import "errors"

// ErrValidation — нарушение контракта при создании Job/JobResult.
//
// Это ошибка вызывающего кода, а не сбой выполнения: она не ретраится
// и не превращается молча в корректное значение.
var ErrValidation = errors.New("validation failed")

// ValidationError — ошибка валидации с указанием поля.
type ValidationError struct {
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "invalid " + e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает ErrValidation, чтобы работал errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationError создаёт ValidationError для поля.
func NewValidationError(field, message string) *ValidationError {
	return newValidationError(field, message)
}

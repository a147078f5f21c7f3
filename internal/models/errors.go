package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation нарушение формата полей, политики пароля или уникальности.
	ErrValidation = errors.New("validation error")
	// ErrInvalidSignature токен повреждён, просрочен или подписан чужим ключом.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrUnauthenticated токен подписан верно, но отозван или пользователь не найден.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials неверная пара логин/пароль.
	ErrInvalidCredentials = errors.New("unable to login")
	// ErrPersistence хранилище недоступно или запись не удалась.
	ErrPersistence = errors.New("persistence error")
	// ErrHashing сбой хэширования пароля.
	ErrHashing = errors.New("password hashing failed")
	// ErrNotify не удалось отправить письмо.
	ErrNotify = errors.New("notification failed")
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists нарушено ограничение уникальности.
	ErrAlreadyExists = errors.New("already exists")
)

// FieldError ошибка валидации конкретного поля. Err хранит исходную причину,
// например ErrAlreadyExists для занятых userName и email.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("field %s is not a valid", e.Field)
	}
	return e.Message
}

// Is позволяет сравнивать FieldError с ErrValidation через errors.Is.
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

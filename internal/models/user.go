// Package models содержит доменную модель пользователя (artist или venue),
// набор ошибок сервиса и структуры сообщений, которыми обмениваются сервисы.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
)

// UserType тип учётной записи.
type UserType string

const (
	// UserTypeArtist артист.
	UserTypeArtist UserType = "artist"
	// UserTypeVenue площадка.
	UserTypeVenue UserType = "venue"
)

// TokenKind определяет домен подписи токена и набор, в котором он хранится.
type TokenKind string

const (
	// TokenKindSession долгоживущий токен сессии.
	TokenKindSession TokenKind = "session"
	// TokenKindReset короткоживущий токен восстановления пароля.
	TokenKindReset TokenKind = "reset"
)

var validate = validator.New()

// PasswordHasher описывает шаг хэширования пароля перед сохранением пользователя.
type PasswordHasher interface {
	// Validate проверяет открытый пароль на соответствие политике.
	Validate(plain string) error
	// GetHash возвращает хэш открытого пароля.
	GetHash(plain string) (string, error)
}

// User представляет зарегистрированного пользователя системы.
//
// Токены сессий и восстановления хранятся в отдельных наборах (см. storage и cache),
// поэтому в структуре их нет.
type User struct {
	UUID         string    // Уникальный идентификатор пользователя
	Username     string    `validate:"required,max=20"`
	Email        string    `validate:"required,email"`
	UserType     UserType  `validate:"required,oneof=artist venue"`
	Enabled      bool      // Видимость профиля в выдаче, по умолчанию false
	Name         string    `validate:"max=100"`
	Description  string    `validate:"max=100"`
	PasswordHash string    // Хэш пароля, пишется только в HashPassword
	CreatedAt    time.Time // Дата регистрации

	password        string
	passwordChanged bool
}

// PublicUser представление пользователя, которое можно отдавать клиенту.
type PublicUser struct {
	UUID        string   `json:"id"`
	Username    string   `json:"userName"`
	UserType    UserType `json:"userType"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ResetToken токен восстановления пароля и время его выдачи.
type ResetToken struct {
	Token    string
	IssuedAt time.Time
}

// SetPassword запоминает новый открытый пароль и помечает его изменённым.
// Хэш вычисляется в HashPassword непосредственно перед сохранением.
func (u *User) SetPassword(plain string) {
	u.password = plain
	u.passwordChanged = true
}

// PasswordChanged сообщает, ожидает ли пароль хэширования.
func (u *User) PasswordChanged() bool {
	return u.passwordChanged
}

// HashPassword выполняет хэширование, если пароль был изменён через SetPassword.
// Повторный вызов без нового SetPassword ничего не делает.
func (u *User) HashPassword(h PasswordHasher) error {
	const op = "models.User.HashPassword"
	if !u.passwordChanged {
		return nil
	}
	if err := h.Validate(u.password); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	hash, err := h.GetHash(u.password)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrHashing, err)
	}
	u.PasswordHash = hash
	u.password = ""
	u.passwordChanged = false
	return nil
}

// Normalize приводит поля к каноническому виду: email в нижнем регистре, пробелы обрезаны.
func (u *User) Normalize() {
	u.Email = NormalizeEmail(u.Email)
	u.Username = strings.TrimSpace(u.Username)
	u.Name = strings.TrimSpace(u.Name)
	u.Description = strings.TrimSpace(u.Description)
}

// Validate проверяет ограничения формата полей пользователя.
func (u *User) Validate() error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return fmt.Errorf("models.User.Validate: %w", err)
	}
	fe := errs[0]
	return &FieldError{Field: fe.Field(), Message: describeTag(fe.Field(), fe.ActualTag(), fe.Param())}
}

// Public возвращает представление без хэша пароля, email, флага enabled и даты регистрации.
func (u *User) Public() PublicUser {
	return PublicUser{
		UUID:        u.UUID,
		Username:    u.Username,
		UserType:    u.UserType,
		Name:        u.Name,
		Description: u.Description,
	}
}

// MarshalJSON гарантирует, что наружу уходит только PublicUser.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Public())
}

// NormalizeEmail обрезает пробелы и переводит адрес в нижний регистр.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func describeTag(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("field %s is a required field", field)
	case "max":
		return fmt.Sprintf("field %s must be at most %s characters", field, param)
	case "email":
		return fmt.Sprintf("field %s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("field %s must be one of [%s]", field, param)
	default:
		return fmt.Sprintf("field %s is not a valid", field)
	}
}

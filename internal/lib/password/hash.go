// Package password реализует хеширование паролей bcrypt и политику допустимых паролей.
//
// GetHash создает bcrypt-хеш пароля для безопасного хранения.
// CompareHash и Verify сравнивают хеш с введённым паролем за время, не зависящее от места расхождения.
package password

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

const (
	// DefaultCost фиксированная стоимость bcrypt для паролей пользователей.
	DefaultCost = 8
	// MinLength минимальная длина открытого пароля в символах.
	MinLength = 6
	// MaxBytes предел bcrypt на длину пароля в байтах.
	MaxBytes = 72

	forbiddenSubstring = "password"
)

// Hasher хэширует и проверяет пароли с заданной стоимостью bcrypt.
type Hasher struct {
	cost int
}

// NewHasher создаёт Hasher. Нулевая стоимость заменяется на DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Validate проверяет пароль до хэширования: не короче MinLength символов, не длиннее MaxBytes байт
// и без подстроки "password" в любом регистре.
func (h *Hasher) Validate(plain string) error {
	if utf8.RuneCountInString(plain) < MinLength {
		return &models.FieldError{
			Field:   "Password",
			Message: fmt.Sprintf("field Password must be at least %d characters", MinLength),
		}
	}
	if len(plain) > MaxBytes {
		return &models.FieldError{
			Field:   "Password",
			Message: fmt.Sprintf("field Password must be at most %d bytes", MaxBytes),
		}
	}
	if strings.Contains(strings.ToLower(plain), forbiddenSubstring) {
		return &models.FieldError{
			Field:   "Password",
			Message: `field Password cannot contain "password"`,
		}
	}
	return nil
}

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func (h *Hasher) GetHash(plain string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе ошибку.
func (h *Hasher) CompareHash(originalHash, plain string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(plain)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Verify возвращает true, если пароль соответствует хэшу.
func (h *Hasher) Verify(plain, originalHash string) bool {
	return h.CompareHash(originalHash, plain) == nil
}

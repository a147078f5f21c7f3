// Package jwt реализует генерацию и парсинг подписанных токенов для одного домена подписи.
//
// Maker определяет интерфейс выдачи и проверки токенов.
// MakerImpl реализация на HS256 с собственным секретом, назначением (session или reset)
// и, при необходимости, временем жизни.
package jwt

import (
	"time"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Maker описывает интерфейс для генерации и парсинга токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя с указанным UID.
	GenerateToken(userUID string) (string, error)
	// ParseToken проверяет подпись, назначение и срок действия токена.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа,
// назначения токена и времени жизни (TTL).
type MakerImpl struct {
	secretKey string           // Секретный ключ домена подписи
	purpose   models.TokenKind // Назначение: session или reset
	tokenTTL  time.Duration    // Время жизни; при 0 токен бессрочный
	issuer    string
}

// NewJWTMaker создаёт MakerImpl для одного домена подписи.
//
// Для токенов сессии ttl равен нулю: они живут до явного отзыва.
func NewJWTMaker(secretKey string, purpose models.TokenKind, ttl time.Duration, issuer string) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		purpose:   purpose,
		tokenTTL:  ttl,
		issuer:    issuer,
	}
}

// Purpose возвращает назначение токенов этого Maker.
func (j *MakerImpl) Purpose() models.TokenKind {
	return j.purpose
}

package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// CustomClaims описывает данные, хранящиеся в токене.
type CustomClaims struct {
	Purpose              models.TokenKind `json:"purpose"` // session или reset
	jwt.RegisteredClaims                  // Subject хранит UID пользователя, ID уникален для каждого токена
}

// UserUID возвращает UID пользователя из claims.
func (c *CustomClaims) UserUID() string {
	return c.Subject
}

// GenerateToken создает токен для пользователя, подписывая его секретом домена.
//
// Каждый токен получает собственный jti, поэтому два входа подряд дают разные строки.
func (j *MakerImpl) GenerateToken(userUID string) (string, error) {
	const op = "jwt.GenerateToken"
	if userUID == "" {
		return "", fmt.Errorf("%s: empty user uid", op)
	}
	now := time.Now()
	claims := CustomClaims{
		Purpose: j.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userUID,
			ID:       uuid.NewString(),
			Issuer:   j.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if j.tokenTTL != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.tokenTTL))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken парсит токен, проверяет подпись, срок действия и назначение.
// Любая ошибка оборачивает models.ErrInvalidSignature.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w: token expired", op, models.ErrInvalidSignature)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrInvalidSignature, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w: invalid token", op, models.ErrInvalidSignature)
	}
	if claims.Purpose != j.purpose {
		return nil, fmt.Errorf("%s: %w: unexpected purpose %q", op, models.ErrInvalidSignature, claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w: missing subject", op, models.ErrInvalidSignature)
	}
	return claims, nil
}

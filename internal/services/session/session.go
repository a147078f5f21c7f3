// Package session выдаёт, проверяет и отзывает токены сессий.
//
// Токен действителен, пока он подписан секретом сессий и присутствует
// в наборе токенов пользователя. Срока действия у токена сессии нет.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/jwt"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// TokenSet набор действующих токенов пользователя.
type TokenSet interface {
	Add(ctx context.Context, userUID, token string, issuedAt time.Time) error
	Contains(ctx context.Context, userUID, token string) (bool, error)
	Remove(ctx context.Context, userUID, token string) error
	Clear(ctx context.Context, userUID string) error
	Count(ctx context.Context, userUID string) (int, error)
}

// UserGetter загружает пользователя по UID.
type UserGetter interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Service реализует операции над токенами сессий.
type Service struct {
	maker   jwt.Maker
	tokens  TokenSet
	users   UserGetter
	metrics *metrics.Metrics
	now     func() time.Time
}

// New создает Service. maker должен подписывать токены секретом сессий.
func New(maker jwt.Maker, tokens TokenSet, users UserGetter, m *metrics.Metrics) *Service {
	return &Service{
		maker:   maker,
		tokens:  tokens,
		users:   users,
		metrics: m,
		now:     time.Now,
	}
}

// Issue выдаёт новый токен и добавляет его в набор пользователя.
func (s *Service) Issue(ctx context.Context, userUID string) (string, error) {
	const op = "session.Issue"
	token, err := s.maker.GenerateToken(userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.Add(ctx, userUID, token, s.now()); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	s.metrics.TokenIssued(models.TokenKindSession)
	return token, nil
}

// Validate проверяет подпись и членство токена и возвращает владельца.
// ErrInvalidSignature для повреждённых и чужих токенов, ErrUnauthenticated
// для отозванных токенов и неизвестных пользователей.
func (s *Service) Validate(ctx context.Context, token string) (*models.User, error) {
	const op = "session.Validate"
	claims, err := s.maker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	userUID := claims.UserUID()

	ok, err := s.tokens.Contains(ctx, userUID, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	return user, nil
}

// Revoke удаляет ровно один токен. Остальные сессии пользователя не затрагиваются.
func (s *Service) Revoke(ctx context.Context, userUID, token string) error {
	const op = "session.Revoke"
	if err := s.tokens.Remove(ctx, userUID, token); err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	s.metrics.TokenRevoked(models.TokenKindSession, 1)
	return nil
}

// RevokeAll удаляет все токены сессий пользователя.
func (s *Service) RevokeAll(ctx context.Context, userUID string) error {
	const op = "session.RevokeAll"
	n, err := s.tokens.Count(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	if err := s.tokens.Clear(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	s.metrics.TokenRevoked(models.TokenKindSession, n)
	return nil
}

// Package reset выдаёт и погашает токены восстановления пароля.
//
// Токены подписываются отдельным секретом и имеют срок действия.
// Токен действует, пока он есть в наборе токенов восстановления пользователя.
// Смена пароля очищает весь набор.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/jwt"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// TokenSet набор действующих токенов восстановления пользователя.
type TokenSet interface {
	Add(ctx context.Context, userUID, token string, issuedAt time.Time) error
	Contains(ctx context.Context, userUID, token string) (bool, error)
	Remove(ctx context.Context, userUID, token string) error
	Clear(ctx context.Context, userUID string) error
	Count(ctx context.Context, userUID string) (int, error)
}

// UserStore нужная сервису часть хранилища пользователей.
type UserStore interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
}

// Service реализует выдачу, проверку и погашение токенов восстановления.
type Service struct {
	maker   jwt.Maker
	tokens  TokenSet
	users   UserStore
	hasher  models.PasswordHasher
	metrics *metrics.Metrics
	now     func() time.Time
}

// New создает Service. maker должен подписывать токены секретом восстановления.
func New(maker jwt.Maker, tokens TokenSet, users UserStore, hasher models.PasswordHasher, m *metrics.Metrics) *Service {
	return &Service{
		maker:   maker,
		tokens:  tokens,
		users:   users,
		hasher:  hasher,
		metrics: m,
		now:     time.Now,
	}
}

// Issue выдаёт токен восстановления и регистрирует его у пользователя.
func (s *Service) Issue(ctx context.Context, userUID string) (models.ResetToken, error) {
	const op = "reset.Issue"
	token, err := s.maker.GenerateToken(userUID)
	if err != nil {
		return models.ResetToken{}, fmt.Errorf("%s: %w", op, err)
	}
	rt := models.ResetToken{Token: token, IssuedAt: s.now()}
	if err := s.tokens.Add(ctx, userUID, rt.Token, rt.IssuedAt); err != nil {
		return models.ResetToken{}, fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	s.metrics.TokenIssued(models.TokenKindReset)
	return rt, nil
}

// Discard отзывает только что выданный токен, например если письмо не ушло.
func (s *Service) Discard(ctx context.Context, userUID, token string) error {
	const op = "reset.Discard"
	if err := s.tokens.Remove(ctx, userUID, token); err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
	s.metrics.TokenRevoked(models.TokenKindReset, 1)
	return nil
}

// Validate проверяет подпись, срок и членство токена и возвращает владельца.
func (s *Service) Validate(ctx context.Context, token string) (*models.User, error) {
	const op = "reset.Validate"
	claims, err := s.maker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	userUID := claims.UserUID()

	if err := s.checkMembership(ctx, userUID, token); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
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

// Consume меняет пароль пользователя по токену восстановления.
//
// Набор токенов очищается до записи нового хэша: если запись не удалась,
// старая ссылка уже не сработает, и пользователь запросит новую.
func (s *Service) Consume(ctx context.Context, user *models.User, token, newPassword string) error {
	const op = "reset.Consume"
	err := s.consume(ctx, user, token, newPassword)
	s.metrics.Reset(err == nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) consume(ctx context.Context, user *models.User, token, newPassword string) error {
	if err := s.checkMembership(ctx, user.UUID, token); err != nil {
		return err
	}

	user.SetPassword(newPassword)
	if err := user.HashPassword(s.hasher); err != nil {
		return err
	}

	n, err := s.tokens.Count(ctx, user.UUID)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	if err := s.tokens.Clear(ctx, user.UUID); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	s.metrics.TokenRevoked(models.TokenKindReset, n)

	if err := s.users.UpdatePassword(ctx, user.UUID, user.PasswordHash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthenticated
		}
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	return nil
}

func (s *Service) checkMembership(ctx context.Context, userUID, token string) error {
	ok, err := s.tokens.Contains(ctx, userUID, token)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	if !ok {
		return models.ErrUnauthenticated
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// TokenSet набор токенов одного вида в таблице user_tokens.
// Каждая операция меняет одну строку, поэтому параллельные
// отзывы разных токенов одного пользователя не мешают друг другу.
type TokenSet struct {
	db   *sql.DB
	kind models.TokenKind
}

// Tokens возвращает набор токенов вида kind.
func (s *Storage) Tokens(kind models.TokenKind) *TokenSet {
	return &TokenSet{db: s.DB, kind: kind}
}

// Add добавляет токен в набор пользователя.
func (t *TokenSet) Add(ctx context.Context, userUID, token string, issuedAt time.Time) error {
	const op = "storage.TokenSet.Add"
	_, err := t.db.ExecContext(ctx, `INSERT INTO user_tokens (user_uid, kind, token, issued_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_uid, kind, token) DO NOTHING`,
		userUID, string(t.kind), token, issuedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Contains проверяет, есть ли токен в наборе пользователя.
func (t *TokenSet) Contains(ctx context.Context, userUID, token string) (bool, error) {
	const op = "storage.TokenSet.Contains"
	var exists bool
	err := t.db.QueryRowContext(ctx, `SELECT EXISTS (
			  SELECT 1 FROM user_tokens WHERE user_uid = $1 AND kind = $2 AND token = $3)`,
		userUID, string(t.kind), token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// Remove удаляет токен из набора. Отсутствующий токен не считается ошибкой.
func (t *TokenSet) Remove(ctx context.Context, userUID, token string) error {
	const op = "storage.TokenSet.Remove"
	_, err := t.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_uid = $1 AND kind = $2 AND token = $3`,
		userUID, string(t.kind), token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Clear удаляет все токены пользователя этого вида.
func (t *TokenSet) Clear(ctx context.Context, userUID string) error {
	const op = "storage.TokenSet.Clear"
	_, err := t.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_uid = $1 AND kind = $2`, userUID, string(t.kind))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Count возвращает число токенов пользователя этого вида.
func (t *TokenSet) Count(ctx context.Context, userUID string) (int, error) {
	const op = "storage.TokenSet.Count"
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_tokens WHERE user_uid = $1 AND kind = $2`,
		userUID, string(t.kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Prune удаляет токены этого вида, выданные раньше before, и возвращает их число.
func (t *TokenSet) Prune(ctx context.Context, before time.Time) (int, error) {
	const op = "storage.TokenSet.Prune"
	res, err := t.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE kind = $1 AND issued_at < $2`,
		string(t.kind), before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

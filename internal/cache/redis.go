// Package cache хранит наборы токенов в Redis: один hash на пользователя и вид токена.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/gig-messenger/internal/config"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Close закрывает клиент.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// Ping проверяет доступность Redis для health-check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

// Tokens возвращает набор токенов вида kind.
func (c *Cache) Tokens(kind models.TokenKind) *TokenSet {
	return &TokenSet{db: c.Db, kind: kind}
}

// TokenSet набор токенов одного вида. Поле hash это токен, значение это
// unix-время выдачи. HSET и HDEL атомарны, поэтому параллельные отзывы
// не теряют друг друга.
type TokenSet struct {
	db   *redis.Client
	kind models.TokenKind
}

func (t *TokenSet) key(userUID string) string {
	return fmt.Sprintf("tokens:%s:%s", t.kind, userUID)
}

// Add добавляет токен в набор пользователя.
func (t *TokenSet) Add(ctx context.Context, userUID, token string, issuedAt time.Time) error {
	const op = "cache.TokenSet.Add"
	if err := t.db.HSet(ctx, t.key(userUID), token, issuedAt.Unix()).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Contains проверяет наличие токена.
func (t *TokenSet) Contains(ctx context.Context, userUID, token string) (bool, error) {
	const op = "cache.TokenSet.Contains"
	ok, err := t.db.HExists(ctx, t.key(userUID), token).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Remove удаляет токен, отсутствующий токен игнорируется.
func (t *TokenSet) Remove(ctx context.Context, userUID, token string) error {
	const op = "cache.TokenSet.Remove"
	if err := t.db.HDel(ctx, t.key(userUID), token).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Clear удаляет все токены пользователя этого вида.
func (t *TokenSet) Clear(ctx context.Context, userUID string) error {
	const op = "cache.TokenSet.Clear"
	if err := t.db.Del(ctx, t.key(userUID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Count возвращает число токенов пользователя.
func (t *TokenSet) Count(ctx context.Context, userUID string) (int, error) {
	const op = "cache.TokenSet.Count"
	n, err := t.db.HLen(ctx, t.key(userUID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

// Prune обходит наборы этого вида через SCAN и удаляет токены, выданные раньше before.
func (t *TokenSet) Prune(ctx context.Context, before time.Time) (int, error) {
	const op = "cache.TokenSet.Prune"
	cutoff := before.Unix()
	pruned := 0

	iter := t.db.Scan(ctx, 0, fmt.Sprintf("tokens:%s:*", t.kind), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		entries, err := t.db.HGetAll(ctx, key).Result()
		if err != nil {
			return pruned, fmt.Errorf("%s: %w", op, err)
		}
		var stale []string
		for token, raw := range entries {
			issued, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || issued < cutoff {
				stale = append(stale, token)
			}
		}
		if len(stale) == 0 {
			continue
		}
		n, err := t.db.HDel(ctx, key, stale...).Result()
		if err != nil {
			return pruned, fmt.Errorf("%s: %w", op, err)
		}
		pruned += int(n)
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("%s: %w", op, err)
	}
	return pruned, nil
}

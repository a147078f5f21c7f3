// Package memory хранит пользователей и наборы токенов в памяти процесса.
// Используется для локального запуска и в тестах сервисов.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Storage потокобезопасное хранилище пользователей.
type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	sets  map[models.TokenKind]*TokenSet
}

// New создает пустое хранилище.
func New() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		sets: map[models.TokenKind]*TokenSet{
			models.TokenKindSession: newTokenSet(),
			models.TokenKindReset:   newTokenSet(),
		},
	}
}

// Tokens возвращает набор токенов вида kind.
func (s *Storage) Tokens(kind models.TokenKind) *TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[kind]
	if !ok {
		set = newTokenSet()
		s.sets[kind] = set
	}
	return set
}

// CreateUser сохраняет пользователя и назначает ему UID.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) (string, error) {
	const op = "memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	email := models.NormalizeEmail(user.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return "", fmt.Errorf("%s: %w", op, &models.FieldError{
				Field: "userName", Message: "userName is already taken", Err: models.ErrAlreadyExists,
			})
		}
		if u.Email == email {
			return "", fmt.Errorf("%s: %w", op, &models.FieldError{
				Field: "email", Message: "email is already registered", Err: models.ErrAlreadyExists,
			})
		}
	}

	user.UUID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	s.users[user.UUID] = copyUser(user)
	return user.UUID, nil
}

// GetUser возвращает пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "memory.GetUser"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userUID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &u, nil
}

// GetUserByLogin ищет пользователя по email или username, email в приоритете.
func (s *Storage) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	const op = "memory.GetUserByLogin"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email := models.NormalizeEmail(login)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var byName *models.User
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
		if u.Username == login {
			found := u
			byName = &found
		}
	}
	if byName == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return byName, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "memory.GetUserByEmail"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email = models.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
}

// UpdatePassword записывает новый хэш пароля.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "memory.UpdatePassword"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userUID]
	if !ok {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	s.users[userUID] = u
	return nil
}

// Ping всегда успешен.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// copyUser отбрасывает несохраняемое состояние (открытый пароль).
func copyUser(u *models.User) models.User {
	return models.User{
		UUID:         u.UUID,
		Username:     u.Username,
		Email:        models.NormalizeEmail(u.Email),
		UserType:     u.UserType,
		Enabled:      u.Enabled,
		Name:         u.Name,
		Description:  u.Description,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

// TokenSet набор токенов одного вида, сгруппированный по пользователям.
type TokenSet struct {
	mu     sync.Mutex
	tokens map[string]map[string]time.Time
}

func newTokenSet() *TokenSet {
	return &TokenSet{tokens: make(map[string]map[string]time.Time)}
}

// Add добавляет токен в набор пользователя.
func (t *TokenSet) Add(ctx context.Context, userUID, token string, issuedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory.TokenSet.Add: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.tokens[userUID]
	if !ok {
		set = make(map[string]time.Time)
		t.tokens[userUID] = set
	}
	set[token] = issuedAt
	return nil
}

// Contains проверяет наличие токена.
func (t *TokenSet) Contains(ctx context.Context, userUID, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("memory.TokenSet.Contains: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tokens[userUID][token]
	return ok, nil
}

// Remove удаляет токен, отсутствующий токен игнорируется.
func (t *TokenSet) Remove(ctx context.Context, userUID, token string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory.TokenSet.Remove: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens[userUID], token)
	return nil
}

// Clear удаляет все токены пользователя.
func (t *TokenSet) Clear(ctx context.Context, userUID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory.TokenSet.Clear: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens, userUID)
	return nil
}

// Count возвращает число токенов пользователя.
func (t *TokenSet) Count(ctx context.Context, userUID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("memory.TokenSet.Count: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens[userUID]), nil
}

// Prune удаляет токены, выданные раньше before.
func (t *TokenSet) Prune(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("memory.TokenSet.Prune: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	pruned := 0
	for uid, set := range t.tokens {
		for token, issuedAt := range set {
			if issuedAt.Before(before) {
				delete(set, token)
				pruned++
			}
		}
		if len(set) == 0 {
			delete(t.tokens, uid)
		}
	}
	return pruned, nil
}

package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

const userColumns = `uid, username, email, password_hash, user_type, enabled, name, description, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.UUID, &u.Username, &u.Email, &u.PasswordHash, &u.UserType,
		&u.Enabled, &u.Name, &u.Description, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его UID.
// Занятые username или email возвращаются как *models.FieldError поверх ErrAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (username, email, password_hash, user_type, enabled, name, description)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING uid, created_at`
	err := s.DB.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, string(user.UserType), user.Enabled,
		user.Name, user.Description).Scan(&user.UUID, &user.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return "", fmt.Errorf("%s: %w", op, duplicateField(constraint))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return user.UUID, nil
}

func duplicateField(constraint string) *models.FieldError {
	switch constraint {
	case "users_email_key":
		return &models.FieldError{Field: "email", Message: "email is already registered", Err: models.ErrAlreadyExists}
	case "users_username_key":
		return &models.FieldError{Field: "userName", Message: "userName is already taken", Err: models.ErrAlreadyExists}
	default:
		return &models.FieldError{Field: constraint, Message: "user already exists", Err: models.ErrAlreadyExists}
	}
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByLogin ищет пользователя по email или по username.
// Совпадение по email имеет приоритет.
func (s *Storage) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	const op = "storage.GetUserByLogin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users
			  WHERE email = $1 OR username = $2
			  ORDER BY (email = $1) DESC
			  LIMIT 1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, models.NormalizeEmail(login), login))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdatePassword записывает новый хэш пароля.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE uid = $2`, passwordHash, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// Package auth содержит сценарии регистрации, входа, выхода и восстановления пароля.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в хранилище.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (string, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Hasher хэширует и проверяет пароли.
type Hasher interface {
	models.PasswordHasher
	Verify(plain, hash string) bool
}

// Sessions выдаёт и отзывает токены сессий.
type Sessions interface {
	Issue(ctx context.Context, userUID string) (string, error)
	Revoke(ctx context.Context, userUID, token string) error
	RevokeAll(ctx context.Context, userUID string) error
}

// Resets выдаёт и погашает токены восстановления.
type Resets interface {
	Issue(ctx context.Context, userUID string) (models.ResetToken, error)
	Discard(ctx context.Context, userUID, token string) error
	Consume(ctx context.Context, user *models.User, token, newPassword string) error
}

// Notifier доставляет письмо восстановления.
type Notifier interface {
	Send(ctx context.Context, mail models.Mail) error
}

// SignupInput данные регистрации.
type SignupInput struct {
	Username    string
	Email       string
	Password    string
	UserType    models.UserType
	Name        string
	Description string
}

// RecoveryConfig параметры письма восстановления.
type RecoveryConfig struct {
	LinkBaseURL string
	Subject     string
}

var recoveryTemplate = template.Must(template.New("recovery").Parse(
	`<p>Hi {{.Username}},</p>
<p>We received a request to reset your password. Follow the link below to choose a new one:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>
`))

// Service оркестрирует пользовательские сценарии аутентификации.
type Service struct {
	users    UserRepository
	hasher   Hasher
	sessions Sessions
	resets   Resets
	notifier Notifier
	recovery RecoveryConfig
	log      *slog.Logger
	metrics  *metrics.Metrics

	// dummyHash сравнивается при входе неизвестного пользователя,
	// чтобы время ответа не выдавало наличие учётной записи.
	dummyHash string
}

// NewService создает Service.
func NewService(
	users UserRepository,
	hasher Hasher,
	sessions Sessions,
	resets Resets,
	notifier Notifier,
	recovery RecoveryConfig,
	log *slog.Logger,
	m *metrics.Metrics,
) (*Service, error) {
	const op = "auth.NewService"
	if _, err := url.Parse(recovery.LinkBaseURL); err != nil {
		return nil, fmt.Errorf("%s: invalid recovery link: %w", op, err)
	}
	dummy, err := hasher.GetHash("dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		resets:    resets,
		notifier:  notifier,
		recovery:  recovery,
		log:       log,
		metrics:   m,
		dummyHash: dummy,
	}, nil
}

// Signup регистрирует пользователя и открывает первую сессию.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, string, error) {
	const op = "auth.Signup"
	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		UserType:    in.UserType,
		Name:        in.Name,
		Description: in.Description,
	}
	user.Normalize()
	if err := user.Validate(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	user.SetPassword(in.Password)
	if err := user.HashPassword(s.hasher); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		return nil, "", fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}

	token, err := s.sessions.Issue(ctx, user.UUID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return user, token, nil
}

// Login проверяет пару логин/пароль, где логин это email или userName.
// Неизвестный пользователь и неверный пароль дают одинаковую ошибку.
func (s *Service) Login(ctx context.Context, login, password string) (*models.User, string, error) {
	const op = "auth.Login"
	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, "", fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
		}
		s.hasher.Verify(password, s.dummyHash)
		s.metrics.Login(false)
		return nil, "", fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.Login(false)
		return nil, "", fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}

	token, err := s.sessions.Issue(ctx, user.UUID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Login(true)
	return user, token, nil
}

// Logout отзывает текущий токен сессии.
func (s *Service) Logout(ctx context.Context, userUID, token string) error {
	const op = "auth.Logout"
	if err := s.sessions.Revoke(ctx, userUID, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoutAll отзывает все сессии пользователя.
func (s *Service) LogoutAll(ctx context.Context, userUID string) error {
	const op = "auth.LogoutAll"
	if err := s.sessions.RevokeAll(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Forgot выдаёт токен восстановления и отправляет ссылку на email.
// Для незарегистрированного email возвращает ErrNotFound, токен не выдаётся.
// Если письмо не ушло, выданный токен отзывается.
func (s *Service) Forgot(ctx context.Context, email string) error {
	const op = "auth.Forgot"
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}

	rt, err := s.resets.Issue(ctx, user.UUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	mail, err := s.recoveryMail(user, rt.Token)
	if err == nil {
		err = s.notifier.Send(ctx, mail)
	}
	s.metrics.NotifierSend(err == nil)
	if err != nil {
		if discardErr := s.resets.Discard(ctx, user.UUID, rt.Token); discardErr != nil {
			s.log.Error("failed to discard reset token", slog.String("op", op), sl.Err(discardErr))
		}
		if errors.Is(err, models.ErrNotify) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %w", op, models.ErrNotify, err)
	}
	return nil
}

// ResetPassword меняет пароль по токену восстановления, прошедшему Reset Gate.
func (s *Service) ResetPassword(ctx context.Context, user *models.User, token, newPassword string) (*models.User, error) {
	const op = "auth.ResetPassword"
	if err := s.resets.Consume(ctx, user, token, newPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Profile возвращает актуальные данные пользователя.
func (s *Service) Profile(ctx context.Context, userUID string) (*models.User, error) {
	const op = "auth.Profile"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Service) recoveryMail(user *models.User, token string) (models.Mail, error) {
	link, err := url.Parse(s.recovery.LinkBaseURL)
	if err != nil {
		return models.Mail{}, err
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	var body bytes.Buffer
	err = recoveryTemplate.Execute(&body, struct {
		Username string
		Link     string
	}{Username: user.Username, Link: link.String()})
	if err != nil {
		return models.Mail{}, err
	}
	return models.Mail{To: user.Email, Subject: s.recovery.Subject, HTML: body.String()}, nil
}

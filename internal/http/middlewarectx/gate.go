// Package middlewarectx содержит HTTP middleware сервиса: гейты токенов сессии
// и восстановления, ограничение частоты запросов и метрики.
//
// Гейт состоит из Guard, который по запросу выносит Verdict, и общего middleware,
// который либо передаёт запрос дальше с обогащённым контекстом, либо отвечает
// единообразной ошибкой. Причина отказа клиенту не раскрывается.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gig-messenger/internal/http/response"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// User ключ для *models.User владельца токена
	User Key = "user"
	// Token ключ для исходной строки токена
	Token Key = "token"
)

// Имена гейтов в логах и метриках.
const (
	GateSession = "session"
	GateReset   = "reset"
)

// Verdict результат проверки запроса: Proceed с новым контекстом или Reject с ошибкой.
type Verdict struct {
	ctx context.Context
	err error
}

// Proceed пропускает запрос дальше с контекстом ctx.
func Proceed(ctx context.Context) Verdict {
	return Verdict{ctx: ctx}
}

// Reject останавливает запрос.
func Reject(err error) Verdict {
	if err == nil {
		err = models.ErrUnauthenticated
	}
	return Verdict{err: err}
}

// Err возвращает причину отказа или nil.
func (v Verdict) Err() error {
	return v.err
}

// Context возвращает контекст для следующего обработчика.
func (v Verdict) Context() context.Context {
	return v.ctx
}

// Guard выносит решение по запросу.
type Guard func(r *http.Request) Verdict

// TokenValidator проверяет токен и возвращает его владельца.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.User, error)
}

// BearerGuard проверяет токен из заголовка Authorization: Bearer <token>.
// Отсутствующий и некорректный заголовок обрабатываются одинаково.
func BearerGuard(v TokenValidator) Guard {
	return func(r *http.Request) Verdict {
		token, ok := bearerToken(r)
		if !ok {
			return Reject(models.ErrInvalidSignature)
		}
		user, err := v.Validate(r.Context(), token)
		if err != nil {
			return Reject(err)
		}
		ctx := context.WithValue(r.Context(), User, user)
		ctx = context.WithValue(ctx, Token, token)
		return Proceed(ctx)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

// Gate превращает Guard в middleware. Ошибки хранилища дают 500,
// все остальные отказы дают 401 "Please authenticate.".
func Gate(name string, guard Guard, log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Gate"
			verdict := guard(r)
			if err := verdict.Err(); err != nil {
				log := log.With(
					slog.String("op", op),
					slog.String("gate", name),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				if errors.Is(err, models.ErrPersistence) {
					log.Error("token store unavailable", sl.Err(err))
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.Error(response.MsgInternal))
					return
				}
				log.Info("request rejected", sl.Err(err))
				m.GateRejected(name)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(response.MsgUnauthenticated))
				return
			}
			next.ServeHTTP(w, r.WithContext(verdict.Context()))
		})
	}
}

// AuthGate требует действующий токен сессии.
func AuthGate(sessions TokenValidator, log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return Gate(GateSession, BearerGuard(sessions), log, m)
}

// ResetGate требует действующий токен восстановления.
func ResetGate(resets TokenValidator, log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return Gate(GateReset, BearerGuard(resets), log, m)
}

// UserFromContext возвращает пользователя, которого установил гейт.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(User).(*models.User)
	return user, ok && user != nil
}

// TokenFromContext возвращает токен, который проверил гейт.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(Token).(string)
	return token, ok && token != ""
}

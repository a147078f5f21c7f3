// Package logout реализует отзыв текущей сессии.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/gig-messenger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gig-messenger/internal/http/response"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
)

// Service описывает отзыв одного токена.
type Service interface {
	Logout(ctx context.Context, userUID, token string) error
}

// Handler обрабатывает POST /users/logout. Работает только за AuthGate.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выход из текущей сессии
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Please authenticate."
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	token, tokOK := middlewarectx.TokenFromContext(r.Context())
	if !ok || !tokOK {
		log.Error("no user in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.MsgUnauthenticated))
		return
	}

	if err := h.service.Logout(r.Context(), user.UUID, token); err != nil {
		log.Error("logout failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.MsgInternal))
		return
	}

	log.Info("session revoked", slog.String("user_uid", user.UUID))
	render.JSON(w, r, response.OK())
}

// Package resetpassword реализует смену пароля по токену восстановления.
package resetpassword

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gig-messenger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gig-messenger/internal/http/response"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Request новый пароль.
type Request struct {
	Password string `json:"password" validate:"required"`
}

// Service описывает смену пароля.
type Service interface {
	ResetPassword(ctx context.Context, user *models.User, token, newPassword string) (*models.User, error)
}

// Handler обрабатывает PATCH /users/resetPassword. Работает только за ResetGate.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Установка нового пароля
// @Description Меняет пароль и делает недействительными все токены восстановления пользователя.
// @Tags Users
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Новый пароль"
// @Success 200 {object} response.Response{data=models.PublicUser}
// @Failure 400 {object} response.ErrorResponse "Пароль не соответствует политике"
// @Failure 401 {object} response.ErrorResponse "Please authenticate."
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/resetPassword [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.resetpassword"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.MsgInvalidRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		render.Status(r, http.StatusBadRequest)
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.JSON(w, r, response.Error(response.MsgInvalidRequest))
		return
	}

	updated, err := h.service.ResetPassword(r.Context(), user, token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			log.Info("password rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.FieldError(err))
		case errors.Is(err, models.ErrUnauthenticated):
			log.Info("reset token no longer valid", sl.Err(err))
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error(response.MsgUnauthenticated))
		default:
			log.Error("reset password failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.MsgInternal))
		}
		return
	}

	log.Info("password reset", slog.String("user_uid", updated.UUID))
	render.JSON(w, r, response.StatusOKWithData(updated.Public()))
}

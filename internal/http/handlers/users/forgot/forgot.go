// Package forgot реализует запрос на восстановление пароля.
//
// Для зарегистрированного email выдаётся токен восстановления и отправляется письмо
// со ссылкой. Для неизвестного email возвращается 400 и письмо не отправляется.
package forgot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gig-messenger/internal/http/response"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// MsgUnknownEmail ответ для email без учётной записи.
const MsgUnknownEmail = "no user with that email"

// Request адрес для восстановления.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service описывает выдачу токена восстановления.
type Service interface {
	Forgot(ctx context.Context, email string) error
}

// Handler обрабатывает POST /users/forgot.
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
// @Summary Восстановление пароля
// @Description Отправляет на email ссылку с токеном восстановления.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body Request true "Email пользователя"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нет пользователя с таким email"
// @Failure 500 {object} response.ErrorResponse "Письмо не отправлено"
// @Router /users/forgot [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.forgot"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.MsgInvalidRequest))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
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

	if err := h.service.Forgot(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			log.Info("unknown email")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(MsgUnknownEmail))
		case errors.Is(err, models.ErrNotify):
			log.Error("recovery mail not sent", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.MsgInternal))
		default:
			log.Error("forgot failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.MsgInternal))
		}
		return
	}

	log.Info("recovery mail sent")
	render.JSON(w, r, response.OK())
}

// Package login реализует HTTP-обработчик входа по email или userName.
//
// Любая ошибка учётных данных отдаётся одним и тем же текстом, чтобы по ответу
// нельзя было понять, существует ли пользователь.
package login

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

// MsgLoginFailed единый текст ошибки входа.
const MsgLoginFailed = "unable to login"

// Request учетные данные. Нужен email или userName, при наличии обоих используется email.
type Request struct {
	Email    string `json:"email,omitempty" validate:"required_without=Username"`
	Username string `json:"userName,omitempty" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

// Data тело успешного ответа.
type Data struct {
	User         models.PublicUser `json:"user"`
	SessionToken string            `json:"sessionToken"`
}

// Service описывает бизнес-логику входа.
type Service interface {
	Login(ctx context.Context, login, password string) (*models.User, string, error)
}

// Handler обрабатывает POST /users/login.
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
// @Summary Вход пользователя
// @Description Проверяет пароль и выдаёт новый токен сессии. Прежние сессии остаются действительными.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response{data=Data}
// @Failure 400 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.login"

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
	req.Username = strings.TrimSpace(req.Username)
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(MsgLoginFailed))
		return
	}

	login := req.Email
	if login == "" {
		login = req.Username
	}

	user, token, err := h.service.Login(r.Context(), login, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			log.Info("login failed", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(MsgLoginFailed))
			return
		}
		log.Error("login failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.MsgInternal))
		return
	}

	log.Info("login success", slog.String("user_uid", user.UUID))
	render.JSON(w, r, response.StatusOKWithData(Data{User: user.Public(), SessionToken: token}))
}

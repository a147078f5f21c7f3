// Package signup реализует HTTP-обработчик регистрации пользователя.
//
// Обработчик декодирует JSON, проверяет поля, создаёт пользователя через Service
// и возвращает публичное представление пользователя вместе с первым токеном сессии.
package signup

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
	"github.com/magabrotheeeer/gig-messenger/internal/services/auth"
)

// Request входные данные регистрации.
type Request struct {
	Username    string `json:"userName" validate:"required,max=20"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	UserType    string `json:"userType" validate:"required,oneof=artist venue"`
	Name        string `json:"name,omitempty" validate:"max=100"`
	Description string `json:"description,omitempty" validate:"max=100"`
}

func (r *Request) trim() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// Data тело успешного ответа.
type Data struct {
	User         models.PublicUser `json:"user"`
	SessionToken string            `json:"sessionToken"`
}

// Service описывает бизнес-логику регистрации.
type Service interface {
	Signup(ctx context.Context, in auth.SignupInput) (*models.User, string, error)
}

// Handler обрабатывает POST /users/signup.
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
// @Summary Регистрация пользователя
// @Description Создаёт artist или venue и открывает первую сессию.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные нового пользователя"
// @Success 201 {object} response.Response{data=Data}
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации или занятый userName/email"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.signup"

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

	req.trim()
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Error("validation failed", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.MsgInvalidRequest))
			return
		}
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	user, token, err := h.service.Signup(r.Context(), auth.SignupInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		UserType:    models.UserType(req.UserType),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			log.Info("signup rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.FieldError(err))
			return
		}
		log.Error("signup failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.MsgInternal))
		return
	}

	log.Info("user signed up", slog.String("user_uid", user.UUID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(Data{User: user.Public(), SessionToken: token}))
}

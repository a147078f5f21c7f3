package auth

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/health"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/forgot"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/login"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/logout"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/logoutall"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/me"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/resetpassword"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/users/signup"
	"github.com/magabrotheeeer/gig-messenger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	authservice "github.com/magabrotheeeer/gig-messenger/internal/services/auth"

	_ "github.com/magabrotheeeer/gig-messenger/docs"
)

// Deps зависимости маршрутов.
type Deps struct {
	Log      *slog.Logger
	Auth     *authservice.Service
	Sessions middlewarectx.TokenValidator
	Resets   middlewarectx.TokenValidator
	Metrics  *metrics.Metrics
	Limiter  *middlewarectx.IPRateLimiter
	Pingers  []health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.HTTPMetrics(d.Metrics),
	)

	r.Route("/users", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/signup", signup.New(d.Log, d.Auth).ServeHTTP)
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, d.Log))
			}
			r.Post("/login", login.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/forgot", forgot.New(d.Log, d.Auth).ServeHTTP)
		})

		// Токен сессии
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AuthGate(d.Sessions, d.Log, d.Metrics))
			r.Post("/logout", logout.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/logoutAll", logoutall.New(d.Log, d.Auth).ServeHTTP)
			r.Get("/me", me.New(d.Log, d.Auth).ServeHTTP)
		})

		// Токен восстановления
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.ResetGate(d.Resets, d.Log, d.Metrics))
			r.Patch("/resetPassword", resetpassword.New(d.Log, d.Auth).ServeHTTP)
		})
	})

	r.Get("/health", health.New(d.Log, d.Pingers...).ServeHTTP)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

// Package main API аутентификации gig-messenger
//
// @title           Gig Messenger Auth API
// @version         1.0
// @description     Регистрация, сессии и восстановление пароля для artist и venue

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and token.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/gig-messenger/internal/app/auth"
	"github.com/magabrotheeeer/gig-messenger/internal/config"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/logger"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, os.Stdout)

	log.Info("starting auth", slog.String("env", cfg.Env))
	log.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := auth.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize auth app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("auth app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("auth app stopped gracefully")
}

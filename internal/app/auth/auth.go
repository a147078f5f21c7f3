// Package auth собирает HTTP API пользователей: хранилище, наборы токенов,
// сервисы сессий и восстановления, доставку писем и маршруты.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/gig-messenger/internal/config"
	"github.com/magabrotheeeer/gig-messenger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/jwt"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/password"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
	authservice "github.com/magabrotheeeer/gig-messenger/internal/services/auth"
	"github.com/magabrotheeeer/gig-messenger/internal/services/reset"
	"github.com/magabrotheeeer/gig-messenger/internal/services/session"
	"github.com/magabrotheeeer/gig-messenger/internal/services/sweeper"
)

const shutdownTimeout = 15 * time.Second

// App процесс HTTP API с необязательным gRPC health сервером.
type App struct {
	server     *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	sweeper    *sweeper.SweeperService
	logger     *slog.Logger
	closers    []func() error
}

// New поднимает зависимости по конфигу. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.auth.New"

	a := &App{logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.closers = append(a.closers, st.closers...)

	notifier, closeNotifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.closers = append(a.closers, closeNotifier)

	m := metrics.New(prometheus.DefaultRegisterer)
	deps, err := buildDeps(cfg, st, notifier, logger, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, deps)

	if cfg.Tokens.SweepInterval > 0 {
		a.sweeper = sweeper.NewSweeperService(st.resets, cfg.Tokens.ResetTTL, cfg.Tokens.SweepInterval, logger, m)
	}

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.AddressHTTP,
		Handler:      otelhttp.NewHandler(router, "gig-messenger"),
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if cfg.GRPCHealthAddress != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddress)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.listener = lis
		a.health = health.NewServer()
		a.grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(a.grpcServer, a.health)
	}

	ready = true
	return a, nil
}

// buildDeps собирает сервисы поверх выбранных хранилищ.
func buildDeps(cfg *config.Config, st *stores, notifier authservice.Notifier, logger *slog.Logger, m *metrics.Metrics) (Deps, error) {
	hasher := password.NewHasher(cfg.Password.BcryptCost)

	sessionMaker := jwt.NewJWTMaker(cfg.Tokens.SessionSecret, models.TokenKindSession, 0, cfg.Tokens.Issuer)
	resetMaker := jwt.NewJWTMaker(cfg.Tokens.ResetSecret, models.TokenKindReset, cfg.Tokens.ResetTTL, cfg.Tokens.Issuer)

	sessions := session.New(sessionMaker, st.sessions, st.users, m)
	resets := reset.New(resetMaker, st.resets, st.users, hasher, m)

	svc, err := authservice.NewService(
		st.users,
		hasher,
		sessions,
		resets,
		notifier,
		authservice.RecoveryConfig{
			LinkBaseURL: cfg.Recovery.LinkBaseURL,
			Subject:     cfg.Recovery.Subject,
		},
		logger,
		m,
	)
	if err != nil {
		return Deps{}, err
	}

	return Deps{
		Log:      logger,
		Auth:     svc,
		Sessions: sessions,
		Resets:   resets,
		Metrics:  m,
		Limiter:  middlewarectx.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Pingers:  st.pingers,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливает серверы.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.sweeper != nil {
		go a.sweeper.Run(ctx)
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if a.grpcServer != nil {
		a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		go func() {
			a.logger.Info("gRPC health service listening on", slog.String("address", a.listener.Addr().String()))
			if err := a.grpcServer.Serve(a.listener); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	a.logger.Info("shutting down gracefully")
	if a.grpcServer != nil {
		a.health.Shutdown()
		a.grpcServer.GracefulStop()
	}
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.close()
	return runErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if a.closers[i] == nil {
			continue
		}
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gig-messenger/internal/cache"
	"github.com/magabrotheeeer/gig-messenger/internal/config"
	"github.com/magabrotheeeer/gig-messenger/internal/http/handlers/health"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/smtp"
	"github.com/magabrotheeeer/gig-messenger/internal/migrations"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
	authservice "github.com/magabrotheeeer/gig-messenger/internal/services/auth"
	"github.com/magabrotheeeer/gig-messenger/internal/services/sender"
	"github.com/magabrotheeeer/gig-messenger/internal/storage"
	"github.com/magabrotheeeer/gig-messenger/internal/storage/memory"
)

// userStore хранилище пользователей, общее для всех сервисов.
type userStore interface {
	CreateUser(ctx context.Context, user *models.User) (string, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
	Ping(ctx context.Context) error
}

// tokenSet набор токенов одного вида.
type tokenSet interface {
	Add(ctx context.Context, userUID, token string, issuedAt time.Time) error
	Contains(ctx context.Context, userUID, token string) (bool, error)
	Remove(ctx context.Context, userUID, token string) error
	Clear(ctx context.Context, userUID string) error
	Count(ctx context.Context, userUID string) (int, error)
}

// prunableTokenSet набор, из которого можно удалить просроченные токены.
type prunableTokenSet interface {
	tokenSet
	Prune(ctx context.Context, before time.Time) (int, error)
}

type stores struct {
	users    userStore
	sessions tokenSet
	resets   prunableTokenSet
	pingers  []health.Pinger
	closers  []func() error
}

// openStores открывает хранилище пользователей и наборы токенов по storage_driver и token_store.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	const op = "app.auth.openStores"
	st := &stores{}

	var (
		db  *storage.Storage
		mem *memory.Storage
	)
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		var err error
		db, err = storage.New(ctx, cfg.StorageConnectionString)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		st.closers = append(st.closers, db.Close)
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		st.users = db
	case config.DriverMemory:
		mem = memory.New()
		st.users = mem
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.StorageDriver)
	}
	st.pingers = append(st.pingers, st.users)

	switch cfg.TokenStore {
	case config.DriverPostgres:
		st.sessions = db.Tokens(models.TokenKindSession)
		st.resets = db.Tokens(models.TokenKindReset)
	case config.DriverRedis:
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			for _, closeFn := range st.closers {
				closeFn()
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		st.closers = append(st.closers, c.Close)
		st.pingers = append(st.pingers, c)
		st.sessions = c.Tokens(models.TokenKindSession)
		st.resets = c.Tokens(models.TokenKindReset)
	case config.DriverMemory:
		if mem == nil {
			mem = memory.New()
		}
		st.sessions = mem.Tokens(models.TokenKindSession)
		st.resets = mem.Tokens(models.TokenKindReset)
	default:
		return nil, fmt.Errorf("%s: unknown token store %q", op, cfg.TokenStore)
	}

	logger.Info("stores opened",
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("token_store", cfg.TokenStore),
	)
	return st, nil
}

// newNotifier выбирает доставку писем: SMTP из процесса или публикация в очередь.
func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (authservice.Notifier, func() error, error) {
	const op = "app.auth.newNotifier"
	switch cfg.Notifier {
	case config.NotifierSMTP:
		return sender.NewSenderService(logger, smtp.NewTransport(cfg.SMTP, logger)), nil, nil
	case config.NotifierQueue:
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMailQueues())
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		closeFn := func() error {
			ch.Close()
			return conn.Close()
		}
		return sender.NewQueueNotifier(ch, logger), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown notifier %q", op, cfg.Notifier)
	}
}

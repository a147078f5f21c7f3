// Package sender собирает сервис доставки писем: читает очередь писем
// восстановления пароля и отправляет их через SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gig-messenger/internal/config"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/gig-messenger/internal/services/sender"
)

const workers = 4

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: rabbitmq.url is required", op)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetMailQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(logger, transport),
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumeMessages(ctx, a.ch, rabbitmq.PasswordResetQueue, workers, a.logger, a.senderService.HandleMail)
	if err != nil {
		a.logger.Error("failed to start password reset consumer", sl.Err(err))
		return err
	}
	a.logger.Info("consuming", slog.String("queue", rabbitmq.PasswordResetQueue))

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}

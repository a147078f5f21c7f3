// Package sender доставляет письма восстановления пароля: напрямую через SMTP
// или через очередь RabbitMQ, которую читает отдельный сервис.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/smtp"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Transport открывает соединение с SMTP сервером.
type Transport interface {
	Connect() (smtp.Client, error)
	GetSMTPUser() string
}

// SenderService отправляет письма через SMTP.
type SenderService struct {
	transport Transport
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport Transport) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// Send отправляет письмо с HTML телом.
func (s *SenderService) Send(ctx context.Context, mail models.Mail) error {
	const op = "sender.Send"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if err := s.sendEmail(mail); err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrNotify, err)
	}
	return nil
}

// HandleMail разбирает письмо из очереди и отправляет его.
func (s *SenderService) HandleMail(ctx context.Context, body []byte) error {
	const op = "sender.HandleMail"
	var mail models.Mail
	if err := json.Unmarshal(body, &mail); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if mail.To == "" {
		return fmt.Errorf("%s: empty recipient", op)
	}
	return s.Send(ctx, mail)
}

func (s *SenderService) sendEmail(mail models.Mail) error {
	from := s.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + mail.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", mail.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		mail.HTML,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	if err := client.Rcpt(mail.To); err != nil {
		s.log.Error("failed to set RCPT TO", sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully")
	return nil
}

// QueueNotifier публикует письма в очередь для сервиса отправки.
type QueueNotifier struct {
	ch  rabbitmq.Publisher
	log *slog.Logger
}

// NewQueueNotifier создает новый экземпляр QueueNotifier.
func NewQueueNotifier(ch rabbitmq.Publisher, log *slog.Logger) *QueueNotifier {
	return &QueueNotifier{ch: ch, log: log}
}

// Send публикует письмо с ключом маршрутизации password_reset.
func (q *QueueNotifier) Send(ctx context.Context, mail models.Mail) error {
	const op = "sender.QueueNotifier.Send"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if err := rabbitmq.PublishMessage(q.ch, rabbitmq.Exchange, rabbitmq.PasswordResetRoutingKey, mail); err != nil {
		q.log.Error("failed to publish mail", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, models.ErrNotify, err)
	}
	return nil
}

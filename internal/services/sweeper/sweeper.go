// Package sweeper периодически удаляет из набора токены восстановления,
// у которых истёк срок действия. Такие токены уже не проходят проверку подписи,
// но без чистки остаются в хранилище навсегда.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/sl"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Pruner набор токенов, из которого можно удалить старые записи.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// SweeperService периодически удаляет просроченные токены восстановления.
type SweeperService struct {
	tokens   Pruner
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSweeperService создает новый экземпляр SweeperService.
// Удаляются токены старше ttl, проход выполняется раз в interval.
func NewSweeperService(tokens Pruner, ttl, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *SweeperService {
	return &SweeperService{
		tokens:   tokens,
		ttl:      ttl,
		interval: interval,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Run выполняет проход сразу и затем по таймеру до отмены ctx.
func (s *SweeperService) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep удаляет просроченные токены и возвращает их число.
func (s *SweeperService) Sweep(ctx context.Context) int {
	n, err := s.tokens.Prune(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.log.Error("failed to prune reset tokens", sl.Err(err))
		return n
	}
	if n > 0 {
		s.log.Info("expired reset tokens pruned", slog.Int("count", n))
		s.metrics.TokenRevoked(models.TokenKindReset, n)
	}
	return n
}

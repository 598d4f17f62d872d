package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/crowdfund/internal/metrics"
	"go.uber.org/zap"
)

// Sweeper периодически закрывает кампании с истёкшим сроком и чистит старые уведомления.
type Sweeper struct {
	ledger        Ledger
	notifications NotificationPurger
	retention     time.Duration
	interval      time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewSweeper(ledger Ledger, notifications NotificationPurger, interval, retention time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		ledger:        ledger,
		notifications: notifications,
		retention:     retention,
		interval:      interval,
		logger:        logger,
		now:           time.Now,
	}
}

// Start запускает воркер в отдельной горутине и останавливается по ctx.Done().
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("sweeper initial run failed", zap.Error(err))
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RunOnce(ctx); err != nil {
					s.logger.Error("sweeper run failed", zap.Error(err))
				}
			}
		}
	}()
}

// RunOnce выполняет один проход. Ошибка одного шага не отменяет другой.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.now()
	var errs []error

	completed, err := s.ledger.CompleteExpiredCampaigns(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("complete expired campaigns: %w", err))
	} else if completed > 0 {
		metrics.RecordCampaignsCompleted(completed)
		s.logger.Info("expired campaigns completed", zap.Int64("count", completed))
	}

	if s.notifications != nil {
		purged, err := s.notifications.PurgeOlderThan(ctx, now.Add(-s.retention))
		if err != nil {
			errs = append(errs, fmt.Errorf("purge notifications: %w", err))
		} else if purged > 0 {
			s.logger.Info("old notifications purged", zap.Int64("count", purged))
		}
	}

	return errors.Join(errs...)
}

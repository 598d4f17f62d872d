package services

import (
	"context"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/google/uuid"
)

// Ledger - хранилище платежей, кампаний, списаний и пользователей.
// Реализуется storage.PostgresLedger и storage.MemoryLedger.
type Ledger interface {
	storage.LedgerTx

	CreatePayment(ctx context.Context, p *models.Payment) error
	FindPaymentByReference(ctx context.Context, ref string) (*models.Payment, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	FindWithdrawalByReference(ctx context.Context, ref string) (*models.Withdrawal, error)
	ListWithdrawalsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Withdrawal, error)
	CompleteExpiredCampaigns(ctx context.Context, now time.Time) (int64, error)

	// InTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx storage.LedgerTx) error) error
}

// Notifier принимает события для писем, уведомлений и аудита.
// Методы не блокируют и не возвращают ошибок. credited - сумма, зачисленная кампании.
type Notifier interface {
	PaymentCompleted(p models.Payment, c models.Campaign, credited int64)
	PayoutCompleted(w models.Withdrawal)
	PayoutFailed(w models.Withdrawal)
	WithdrawalRequested(w models.Withdrawal)
}

// NotificationPurger удаляет устаревшие уведомления.
type NotificationPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type nopNotifier struct{}

func (nopNotifier) PaymentCompleted(models.Payment, models.Campaign, int64) {}
func (nopNotifier) PayoutCompleted(models.Withdrawal)                       {}
func (nopNotifier) PayoutFailed(models.Withdrawal)                          {}
func (nopNotifier) WithdrawalRequested(models.Withdrawal)                   {}

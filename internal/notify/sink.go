package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationStorage сохраняет уведомления в приложении.
type NotificationStorage interface {
	Create(ctx context.Context, n *models.Notification) error
}

// AuditStorage сохраняет записи аудита.
type AuditStorage interface {
	Create(ctx context.Context, e *models.AuditEntry) error
}

// UserDirectory возвращает контакты пользователя.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Sink - побочный канал писем, уведомлений и аудита. Все методы возвращаются сразу,
// работа выполняется диспетчером, сбои не влияют на вызывающего.
type Sink struct {
	dispatcher    *Dispatcher
	mailer        Mailer
	notifications NotificationStorage
	audit         AuditStorage
	users         UserDirectory
	logger        *zap.Logger
}

func NewSink(dispatcher *Dispatcher, mailer Mailer, notifications NotificationStorage, audit AuditStorage, users UserDirectory, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		dispatcher:    dispatcher,
		mailer:        mailer,
		notifications: notifications,
		audit:         audit,
		users:         users,
		logger:        logger,
	}
}

// PaymentCompleted благодарит жертвователя и уведомляет автора кампании.
// В сообщениях указывается credited, а не сумма из намерения платежа.
func (s *Sink) PaymentCompleted(p models.Payment, c models.Campaign, credited int64) {
	amount := models.ToMajorUnits(credited).StringFixed(2)
	if p.Email != "" {
		s.dispatcher.Dispatch("payment_completed_email", func(ctx context.Context) error {
			body := fmt.Sprintf("Dear %s,\n\nYour donation of %s to %q has been received. Thank you!\n",
				p.DonorName, amount, c.Title)
			return s.mailer.Send(ctx, p.Email, "Payment completed", body)
		})
	}

	s.dispatcher.Dispatch("payment_completed_notification", func(ctx context.Context) error {
		return s.notifications.Create(ctx, &models.Notification{
			UserID:  c.CreatorID,
			Kind:    models.NotificationPaymentCompleted,
			Message: fmt.Sprintf("%s donated %s to %q", p.DonorName, amount, c.Title),
		})
	})
}

// PayoutCompleted подтверждает автору кампании завершённую выплату.
func (s *Sink) PayoutCompleted(w models.Withdrawal) {
	s.dispatcher.Dispatch("payout_completed_email", func(ctx context.Context) error {
		user, err := s.users.GetUser(ctx, w.UserID)
		if err != nil {
			return fmt.Errorf("lookup payout recipient: %w", err)
		}
		body := fmt.Sprintf("Your withdrawal of %s to %s has been completed.\n",
			models.ToMajorUnits(w.PayoutAmount).StringFixed(2), w.PhoneNumber)
		return s.mailer.Send(ctx, user.Email, "Withdrawal completed", body)
	})

	s.dispatcher.Dispatch("payout_completed_notification", func(ctx context.Context) error {
		return s.notifications.Create(ctx, &models.Notification{
			UserID:  w.UserID,
			Kind:    models.NotificationPayoutCompleted,
			Message: fmt.Sprintf("Withdrawal %s completed", w.ExternalReference),
		})
	})

	s.Audit(nil, "withdrawal.completed", "withdrawal", w.ID.String(), map[string]any{
		"reference": w.ExternalReference,
		"settled":   w.SettledAmount(),
	})
}

// PayoutFailed сообщает о неудачной выплате; нужен новый запрос на вывод.
func (s *Sink) PayoutFailed(w models.Withdrawal) {
	s.dispatcher.Dispatch("payout_failed_notification", func(ctx context.Context) error {
		return s.notifications.Create(ctx, &models.Notification{
			UserID:  w.UserID,
			Kind:    models.NotificationPayoutFailed,
			Message: fmt.Sprintf("Withdrawal %s failed, please submit a new request", w.ExternalReference),
		})
	})

	s.Audit(nil, "withdrawal.failed", "withdrawal", w.ID.String(), map[string]any{
		"reference": w.ExternalReference,
	})
}

// WithdrawalRequested фиксирует в аудите созданный запрос на вывод.
func (s *Sink) WithdrawalRequested(w models.Withdrawal) {
	actor := w.UserID
	s.Audit(&actor, "withdrawal.created", "withdrawal", w.ID.String(), map[string]any{
		"reference":        w.ExternalReference,
		"amount":           w.Amount,
		"fee_amount":       w.FeeAmount,
		"payout_amount":    w.PayoutAmount,
		"fee_transferred":  w.FeeTransferred,
		"payout_initiated": w.PayoutInitiated,
	})
}

// Audit записывает действие в журнал аудита.
func (s *Sink) Audit(actorID *uuid.UUID, action, entityType, entityID string, details map[string]any) {
	s.dispatcher.Dispatch("audit:"+action, func(ctx context.Context) error {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		return s.audit.Create(ctx, &models.AuditEntry{
			ActorID:    actorID,
			Action:     action,
			EntityType: entityType,
			EntityID:   entityID,
			Details:    raw,
		})
	})
}

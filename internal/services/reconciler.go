package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/crowdfund/internal/metrics"
	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/storage"
	"go.uber.org/zap"
)

// AmountPolicy задаёт, какая сумма идёт во вклад пользователя при зачислении доната.
type AmountPolicy string

const (
	// AmountPolicySplit: кампании - сумма из API провайдера, пользователю - сумма из webhook.
	AmountPolicySplit AmountPolicy = "split"
	// AmountPolicyProvider: обе суммы берутся из API провайдера.
	AmountPolicyProvider AmountPolicy = "provider"
)

// ParseAmountPolicy разбирает значение из конфигурации. Пустая строка - split.
func ParseAmountPolicy(s string) (AmountPolicy, error) {
	switch AmountPolicy(s) {
	case "", AmountPolicySplit:
		return AmountPolicySplit, nil
	case AmountPolicyProvider:
		return AmountPolicyProvider, nil
	default:
		return "", fmt.Errorf("unknown amount policy %q", s)
	}
}

// Outcome - результат обработки webhook.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeFailed           Outcome = "failed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// Reconciler применяет события провайдера к журналу ровно один раз.
type Reconciler struct {
	ledger   Ledger
	provider provider.Client
	notifier Notifier
	policy   AmountPolicy
	logger   *zap.Logger
}

func NewReconciler(ledger Ledger, client provider.Client, notifier Notifier, policy AmountPolicy, logger *zap.Logger) *Reconciler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if policy == "" {
		policy = AmountPolicySplit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		ledger:   ledger,
		provider: client,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
	}
}

// ReconcileDonation обрабатывает событие о входящем платеже.
// Повторная доставка того же события ничего не меняет и возвращает OutcomeAlreadyProcessed.
func (r *Reconciler) ReconcileDonation(ctx context.Context, ev models.WebhookEvent) (outcome Outcome, err error) {
	defer func() { recordWebhook("donation", outcome, err) }()

	if ev.Kind == models.EventUnrecognized {
		return "", fmt.Errorf("%w: %s", ErrValidation, ev.Reason)
	}
	log := r.logger.With(zap.String("reference", ev.Reference), zap.Stringer("kind", ev.Kind))

	if ev.Kind != models.EventCompleted {
		log.Debug("donation event ignored", zap.String("status", ev.Status))
		return OutcomeIgnored, nil
	}

	payment, err := r.ledger.FindPaymentByReference(ctx, ev.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("donation webhook for unknown reference")
		return OutcomeUnknownReference, nil
	}
	if err != nil {
		return "", fmt.Errorf("find payment %s: %w", ev.Reference, err)
	}
	if payment.Completed {
		log.Info("donation already reconciled")
		return OutcomeAlreadyProcessed, nil
	}

	campaign, err := r.ledger.GetCampaign(ctx, payment.CampaignID)
	if err != nil {
		return "", fmt.Errorf("get campaign %s: %w", payment.CampaignID, err)
	}

	settled, err := r.provider.SettledAmount(ctx, campaign.AccountReference, payment.ExternalReference)
	if err != nil {
		return "", fmt.Errorf("%w: settled amount for %s: %w", ErrProviderError, payment.ExternalReference, err)
	}
	// Платёж без зачисленных средств не завершается: иначе повторная доставка уже ничего не зачислит.
	if settled <= 0 {
		log.Warn("donation not settled at provider yet", zap.Int64("settled_amount", settled))
		return "", fmt.Errorf("%w: %s not settled yet (settled amount %d)", ErrProviderError, payment.ExternalReference, settled)
	}

	contribution := ev.Amount
	if contribution == 0 {
		contribution = settled
	}
	if contribution != settled {
		log.Warn("webhook amount differs from settled amount",
			zap.Int64("webhook_amount", ev.Amount),
			zap.Int64("settled_amount", settled),
			zap.String("policy", string(r.policy)))
		metrics.RecordAmountMismatch("donation")
	}
	if r.policy == AmountPolicyProvider {
		contribution = settled
	}

	var total int64
	err = r.ledger.InTx(ctx, func(tx storage.LedgerTx) error {
		// Отметка о завершении идёт первой: дубликат обрывает транзакцию до изменения сумм.
		if err := tx.MarkPaymentCompleted(ctx, payment.ID); err != nil {
			return err
		}
		var err error
		total, err = tx.AdjustCampaignAmountReceived(ctx, payment.CampaignID, settled)
		if err != nil {
			return err
		}
		if payment.IsAnonymous() {
			return nil
		}
		err = tx.IncrementUserContribution(ctx, *payment.DonorID, contribution)
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("donor not found, contribution not recorded", zap.Stringer("donor_id", payment.DonorID))
			return nil
		}
		return err
	})
	if errors.Is(err, storage.ErrAlreadyProcessed) {
		log.Info("donation reconciled concurrently")
		return OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		return "", fmt.Errorf("apply donation %s: %w", payment.ExternalReference, err)
	}

	log.Info("donation reconciled",
		zap.Stringer("campaign_id", payment.CampaignID),
		zap.Int64("amount", settled),
		zap.Int64("amount_received", total))

	payment.Completed = true
	campaign.AmountReceived = total
	r.notifier.PaymentCompleted(*payment, *campaign, settled)
	return OutcomeProcessed, nil
}

// ReconcilePayout обрабатывает событие о выплате. Завершённая выплата уменьшает
// баланс кампании на фактически отправленные суммы, неуспешная - только на комиссию,
// если она уже была переведена.
func (r *Reconciler) ReconcilePayout(ctx context.Context, ev models.WebhookEvent) (outcome Outcome, err error) {
	defer func() { recordWebhook("payout", outcome, err) }()

	if ev.Kind == models.EventUnrecognized {
		return "", fmt.Errorf("%w: %s", ErrValidation, ev.Reason)
	}
	log := r.logger.With(zap.String("reference", ev.Reference), zap.Stringer("kind", ev.Kind))

	if ev.Kind == models.EventPending {
		log.Debug("payout event ignored", zap.String("status", ev.Status))
		return OutcomeIgnored, nil
	}

	w, err := r.ledger.FindWithdrawalByReference(ctx, ev.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("payout webhook for unknown reference")
		return OutcomeUnknownReference, nil
	}
	if err != nil {
		return "", fmt.Errorf("find withdrawal %s: %w", ev.Reference, err)
	}
	if w.Status != models.WithdrawalStatusPending {
		log.Info("payout already reconciled", zap.String("status", string(w.Status)))
		return OutcomeAlreadyProcessed, nil
	}

	var (
		debit = w.SettledAmount()
		mark  = storage.LedgerTx.MarkWithdrawalCompleted
		next  = models.WithdrawalStatusCompleted
	)
	if ev.Kind == models.EventFailed {
		debit = 0
		if w.FeeTransferred {
			debit = w.FeeAmount
		}
		mark = storage.LedgerTx.MarkWithdrawalFailed
		next = models.WithdrawalStatusFailed
	} else if ev.Amount != 0 && ev.Amount != w.PayoutAmount {
		log.Warn("payout webhook amount differs from recorded payout",
			zap.Int64("webhook_amount", ev.Amount),
			zap.Int64("payout_amount", w.PayoutAmount))
		metrics.RecordAmountMismatch("payout")
	}

	var total int64
	err = r.ledger.InTx(ctx, func(tx storage.LedgerTx) error {
		if err := mark(tx, ctx, w.ID); err != nil {
			return err
		}
		if debit == 0 {
			return nil
		}
		var err error
		total, err = tx.AdjustCampaignAmountReceived(ctx, w.CampaignID, -debit)
		return err
	})
	if errors.Is(err, storage.ErrAlreadyProcessed) {
		log.Info("payout reconciled concurrently")
		return OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		return "", fmt.Errorf("apply payout %s: %w", w.ExternalReference, err)
	}
	if debit != 0 && total < 0 {
		log.Warn("campaign balance went negative after payout",
			zap.Stringer("campaign_id", w.CampaignID),
			zap.Int64("amount_received", total))
	}

	w.Status = next
	if next == models.WithdrawalStatusFailed {
		log.Warn("payout failed", zap.String("status", ev.Status), zap.Int64("debited", debit))
		r.notifier.PayoutFailed(*w)
		return OutcomeFailed, nil
	}
	log.Info("payout reconciled", zap.Int64("debited", debit))
	r.notifier.PayoutCompleted(*w)
	return OutcomeProcessed, nil
}

func recordWebhook(kind string, outcome Outcome, err error) {
	if err != nil {
		if errors.Is(err, ErrValidation) {
			metrics.RecordWebhook(kind, "invalid")
			return
		}
		metrics.RecordWebhook(kind, "error")
		return
	}
	metrics.RecordWebhook(kind, string(outcome))
}

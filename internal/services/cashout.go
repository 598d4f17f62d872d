package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/crowdfund/internal/metrics"
	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFeeRate - комиссия платформы с каждого вывода.
var DefaultFeeRate = decimal.RequireFromString("0.03")

// Split - разбиение суммы вывода в минимальных единицах.
// AmountForMain + AmountForCashout == Total.
type Split struct {
	Total            int64
	AmountForMain    int64
	AmountForCashout int64
}

// CalculateSplit переводит сумму в минимальные единицы и отделяет комиссию.
// Оба шага округляют половину вверх.
func CalculateSplit(value, feeRate decimal.Decimal) Split {
	total := models.ToMinorUnits(value)
	fee := decimal.NewFromInt(total).Mul(feeRate).Round(0).IntPart()
	return Split{
		Total:            total,
		AmountForMain:    fee,
		AmountForCashout: total - fee,
	}
}

// CashoutInput - проверенный запрос на вывод.
type CashoutInput struct {
	UserID      uuid.UUID
	CampaignID  uuid.UUID
	Amount      decimal.Decimal
	PhoneNumber string
	Provider    string
}

// CashoutService выводит средства кампании двумя переводами: комиссия на
// основной счёт платформы и выплата на телефон автора.
type CashoutService struct {
	ledger     Ledger
	provider   provider.Client
	notifier   Notifier
	feeRate    decimal.Decimal
	legTimeout time.Duration
	logger     *zap.Logger
}

// NewCashoutService создаёт сервис вывода. feeRate применяется как есть, ноль отключает комиссию.
func NewCashoutService(ledger Ledger, client provider.Client, notifier Notifier, feeRate decimal.Decimal, legTimeout time.Duration, logger *zap.Logger) *CashoutService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if legTimeout <= 0 {
		legTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CashoutService{
		ledger:     ledger,
		provider:   client,
		notifier:   notifier,
		feeRate:    feeRate,
		legTimeout: legTimeout,
		logger:     logger,
	}
}

type legResult struct {
	reference string
	err       error
}

func (r legResult) ok() bool { return r.err == nil }

// Cashout проверяет запрос, запускает обе ноги перевода одновременно и
// записывает вывод в статусе pending. Если не прошла ни одна нога, запись
// не создаётся и возвращается ErrCashoutFailed.
func (s *CashoutService) Cashout(ctx context.Context, in CashoutInput) (*models.Withdrawal, error) {
	campaign, err := s.ownedCampaign(ctx, in.UserID, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidCashoutRequest)
	}
	if campaign.AmountReceived <= 0 {
		return nil, fmt.Errorf("%w: campaign has no funds", ErrInvalidCashoutRequest)
	}
	split := CalculateSplit(in.Amount, s.feeRate)
	if split.Total <= 0 {
		return nil, fmt.Errorf("%w: amount is below the smallest unit", ErrInvalidCashoutRequest)
	}
	if split.Total > campaign.AmountReceived {
		return nil, fmt.Errorf("%w: amount exceeds available balance", ErrInvalidCashoutRequest)
	}

	log := s.logger.With(
		zap.Stringer("campaign_id", campaign.ID),
		zap.Int64("amount", split.Total),
		zap.Int64("fee", split.AmountForMain),
		zap.Int64("payout", split.AmountForCashout))

	// Ноги не отменяют друг друга: отказ одной не прерывает уже начатый перевод другой.
	var fee, payout legResult
	var g errgroup.Group
	g.Go(func() error {
		fee = s.transferFee(ctx, campaign.AccountReference, split.AmountForMain)
		return fee.err
	})
	g.Go(func() error {
		payout = s.payout(ctx, campaign.AccountReference, split.AmountForCashout, in)
		return payout.err
	})
	legsErr := g.Wait()

	if !payout.ok() && (!fee.ok() || split.AmountForMain == 0) {
		log.Error("cashout failed on both legs", zap.NamedError("fee_error", fee.err), zap.NamedError("payout_error", payout.err))
		metrics.RecordCashout("failed")
		return nil, errors.Join(ErrCashoutFailed, fee.err, payout.err)
	}

	reference := payout.reference
	switch {
	case legsErr == nil:
		metrics.RecordCashout("success")
	case !fee.ok():
		log.Error("platform fee transfer failed, payout went through",
			zap.String("alert", "cashout_fee_leg_failed"),
			zap.String("payout_reference", payout.reference),
			zap.Error(fee.err))
		metrics.RecordCashout("partial")
	case !payout.ok():
		// Выплаты нет, вебхука по ней не будет: запись ищется по ссылке комиссии.
		reference = fee.reference
		log.Error("payout failed, platform fee already transferred; needs manual reconciliation",
			zap.String("alert", "cashout_payout_leg_failed"),
			zap.String("fee_reference", fee.reference),
			zap.Error(payout.err))
		metrics.RecordCashout("partial")
	}

	details, err := json.Marshal(map[string]any{
		"fee":    legDetails(fee, split.AmountForMain),
		"payout": legDetails(payout, split.AmountForCashout),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payment details: %w", err)
	}

	w := &models.Withdrawal{
		CampaignID:        campaign.ID,
		UserID:            in.UserID,
		ExternalReference: reference,
		Amount:            split.Total,
		FeeAmount:         split.AmountForMain,
		PayoutAmount:      split.AmountForCashout,
		FeeReference:      fee.reference,
		FeeTransferred:    fee.ok() && split.AmountForMain > 0,
		PayoutInitiated:   payout.ok(),
		PhoneNumber:       in.PhoneNumber,
		Provider:          in.Provider,
		Status:            models.WithdrawalStatusPending,
		PaymentDetails:    details,
	}
	if err := s.ledger.CreateWithdrawal(ctx, w); err != nil {
		log.Error("provider transfers issued but withdrawal not recorded",
			zap.String("fee_reference", fee.reference),
			zap.String("payout_reference", payout.reference),
			zap.Error(err))
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}

	log.Info("cashout initiated", zap.Stringer("withdrawal_id", w.ID), zap.String("reference", w.ExternalReference))
	s.notifier.WithdrawalRequested(*w)
	return w, nil
}

// ListWithdrawals возвращает историю выводов кампании её автору.
func (s *CashoutService) ListWithdrawals(ctx context.Context, userID, campaignID uuid.UUID) ([]*models.Withdrawal, error) {
	if _, err := s.ownedCampaign(ctx, userID, campaignID); err != nil {
		return nil, err
	}
	list, err := s.ledger.ListWithdrawalsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return list, nil
}

func (s *CashoutService) ownedCampaign(ctx context.Context, userID, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.ledger.GetCampaign(ctx, campaignID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: campaign not found", ErrInvalidCashoutRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Deleted {
		return nil, fmt.Errorf("%w: campaign not found", ErrInvalidCashoutRequest)
	}
	if campaign.CreatorID != userID {
		return nil, ErrNotCampaignOwner
	}
	return campaign, nil
}

func (s *CashoutService) transferFee(ctx context.Context, accountRef string, amount int64) legResult {
	if amount == 0 {
		return legResult{}
	}
	ctx, cancel := context.WithTimeout(ctx, s.legTimeout)
	defer cancel()

	res, err := s.provider.TransferToMainAccount(ctx, accountRef, amount)
	return s.legOutcome("fee", res, err)
}

func (s *CashoutService) payout(ctx context.Context, accountRef string, amount int64, in CashoutInput) legResult {
	ctx, cancel := context.WithTimeout(ctx, s.legTimeout)
	defer cancel()

	res, err := s.provider.Cashout(ctx, amount, accountRef, in.PhoneNumber, in.Provider)
	return s.legOutcome("payout", res, err)
}

func (s *CashoutService) legOutcome(leg string, res *provider.TransferResult, err error) legResult {
	if err == nil && (res == nil || !res.Success) {
		msg := "empty response"
		if res != nil {
			msg = res.Message
		}
		err = fmt.Errorf("%w: %s", provider.ErrTransferRejected, msg)
	}
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, provider.ErrTimeout):
			reason = "timeout"
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
			err = fmt.Errorf("%w: %w", provider.ErrTimeout, err)
		case errors.Is(err, provider.ErrTransferRejected):
			reason = "rejected"
		}
		metrics.RecordCashoutLegFailure(leg, reason)
		return legResult{err: fmt.Errorf("%s leg: %w", leg, err)}
	}
	return legResult{reference: res.TransactionID}
}

func legDetails(r legResult, amount int64) map[string]any {
	d := map[string]any{"amount": amount, "success": r.ok()}
	if r.reference != "" {
		d["reference"] = r.reference
	}
	if r.err != nil {
		d["error"] = r.err.Error()
	}
	return d
}

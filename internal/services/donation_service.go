package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DonationInput - запрос на создание платежа.
type DonationInput struct {
	CampaignID uuid.UUID
	DonorID    *uuid.UUID
	DonorName  string
	Email      string
	Amount     decimal.Decimal
}

// DonationService регистрирует намерение оплаты у провайдера и сохраняет
// незавершённый платёж. Зачисление происходит позже, по webhook.
type DonationService struct {
	ledger   Ledger
	provider provider.Client
	logger   *zap.Logger
}

func NewDonationService(ledger Ledger, client provider.Client, logger *zap.Logger) *DonationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationService{ledger: ledger, provider: client, logger: logger}
}

// CreateIntent создаёт платёж. Без имени жертвователь считается анонимным.
func (s *DonationService) CreateIntent(ctx context.Context, in DonationInput) (*models.Payment, *provider.PaymentIntent, error) {
	amount := models.ToMinorUnits(in.Amount)
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	campaign, err := s.ledger.GetCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Deleted || campaign.Status != models.CampaignStatusActive {
		return nil, nil, ErrCampaignNotActive
	}

	name := strings.TrimSpace(in.DonorName)
	if name == "" {
		name = models.AnonymousDonor
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, campaign.AccountReference, amount, in.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create payment intent: %w", ErrProviderError, err)
	}

	p := &models.Payment{
		ExternalReference: intent.Reference,
		CampaignID:        campaign.ID,
		DonorID:           in.DonorID,
		DonorName:         name,
		Email:             in.Email,
		Amount:            amount,
	}
	if err := s.ledger.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, storage.ErrPaymentExists) {
			s.logger.Error("provider returned a reference that is already recorded", zap.String("reference", intent.Reference))
		}
		return nil, nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Info("donation intent created",
		zap.String("reference", p.ExternalReference),
		zap.Stringer("campaign_id", campaign.ID),
		zap.Int64("amount", amount),
		zap.Bool("anonymous", p.IsAnonymous()))
	return p, intent, nil
}

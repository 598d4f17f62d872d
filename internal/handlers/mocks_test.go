package handlers

import (
	"context"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type mockReconciler struct {
	DonationFunc func(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error)
	PayoutFunc   func(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error)
}

func (m *mockReconciler) ReconcileDonation(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error) {
	if m.DonationFunc != nil {
		return m.DonationFunc(ctx, ev)
	}
	return services.OutcomeProcessed, nil
}

func (m *mockReconciler) ReconcilePayout(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error) {
	if m.PayoutFunc != nil {
		return m.PayoutFunc(ctx, ev)
	}
	return services.OutcomeProcessed, nil
}

type mockCashoutService struct {
	CashoutFunc func(ctx context.Context, in services.CashoutInput) (*models.Withdrawal, error)
	ListFunc    func(ctx context.Context, userID, campaignID uuid.UUID) ([]*models.Withdrawal, error)
}

func (m *mockCashoutService) Cashout(ctx context.Context, in services.CashoutInput) (*models.Withdrawal, error) {
	if m.CashoutFunc != nil {
		return m.CashoutFunc(ctx, in)
	}
	return &models.Withdrawal{}, nil
}

func (m *mockCashoutService) ListWithdrawals(ctx context.Context, userID, campaignID uuid.UUID) ([]*models.Withdrawal, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, campaignID)
	}
	return nil, nil
}

type mockDonationService struct {
	CreateFunc func(ctx context.Context, in services.DonationInput) (*models.Payment, *provider.PaymentIntent, error)
}

func (m *mockDonationService) CreateIntent(ctx context.Context, in services.DonationInput) (*models.Payment, *provider.PaymentIntent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in)
	}
	return &models.Payment{}, &provider.PaymentIntent{}, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e
}

// statusOf возвращает код ответа: из HTTPError или из записанного ответа.
func statusOf(err error, recorded int) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return recorded
}

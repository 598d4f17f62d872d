package services

import (
	"context"
	"testing"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Донат 50000, вывод 450, выплата подтверждена.
func TestDonationToPayoutFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0)
	donations := NewDonationService(f.ledger, f.provider, nil)
	reconciler := f.reconciler(AmountPolicySplit)
	cashouts := f.cashout()

	p, intent, err := donations.CreateIntent(ctx, DonationInput{
		CampaignID: f.campaign.ID,
		DonorID:    &f.donor.ID,
		DonorName:  "Alice",
		Email:      "alice@example.com",
		Amount:     decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	f.provider.settle(intent.Reference, p.Amount)

	outcome, err := reconciler.ReconcileDonation(ctx, completedEvent(intent.Reference, 50000))
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, int64(50000), f.balance())
	assert.True(t, f.contribution(f.donor.ID).Equal(decimal.NewFromInt(500)))

	w, err := cashouts.Cashout(ctx, CashoutInput{
		UserID:      f.owner.ID,
		CampaignID:  f.campaign.ID,
		Amount:      decimal.NewFromInt(450),
		PhoneNumber: "+254700000000",
		Provider:    "mpesa",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1350), w.FeeAmount)
	assert.Equal(t, int64(43650), w.PayoutAmount)
	assert.Equal(t, models.WithdrawalStatusPending, w.Status)

	outcome, err = reconciler.ReconcilePayout(ctx, completedEvent(w.ExternalReference, w.PayoutAmount))
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	assert.Equal(t, int64(5000), f.balance())
	stored, err := f.ledger.FindWithdrawalByReference(ctx, w.ExternalReference)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, stored.Status)

	// остаток меньше следующего запроса
	_, err = cashouts.Cashout(ctx, CashoutInput{UserID: f.owner.ID, CampaignID: f.campaign.ID, Amount: decimal.NewFromInt(51)})
	assert.ErrorIs(t, err, ErrInvalidCashoutRequest)
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeProvider - провайдер в памяти. Пустые *Func дают успешный ответ.
type fakeProvider struct {
	mu      sync.Mutex
	settled map[string]int64
	seq     int

	SettledErr   error
	TransferFunc func(ctx context.Context, accountRef string, amount int64) (*provider.TransferResult, error)
	CashoutFunc  func(ctx context.Context, amount int64, accountRef, phone, network string) (*provider.TransferResult, error)

	transfers []int64
	cashouts  []int64
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{settled: map[string]int64{}}
}

func (f *fakeProvider) settle(ref string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[ref] = amount
}

func (f *fakeProvider) nextRef(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeProvider) TransferToMainAccount(ctx context.Context, accountRef string, amount int64) (*provider.TransferResult, error) {
	f.mu.Lock()
	f.transfers = append(f.transfers, amount)
	f.mu.Unlock()
	if f.TransferFunc != nil {
		return f.TransferFunc(ctx, accountRef, amount)
	}
	return &provider.TransferResult{Success: true, TransactionID: f.nextRef("fee")}, nil
}

func (f *fakeProvider) Cashout(ctx context.Context, amount int64, accountRef, phone, network string) (*provider.TransferResult, error) {
	f.mu.Lock()
	f.cashouts = append(f.cashouts, amount)
	f.mu.Unlock()
	if f.CashoutFunc != nil {
		return f.CashoutFunc(ctx, amount, accountRef, phone, network)
	}
	return &provider.TransferResult{Success: true, TransactionID: f.nextRef("payout")}, nil
}

func (f *fakeProvider) SettledAmount(ctx context.Context, accountRef, reference string) (int64, error) {
	if f.SettledErr != nil {
		return 0, f.SettledErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.settled[reference]
	if !ok {
		return 0, provider.ErrNotFound
	}
	return amount, nil
}

func (f *fakeProvider) CreatePaymentIntent(ctx context.Context, accountRef string, amount int64, email string) (*provider.PaymentIntent, error) {
	ref := f.nextRef("pay")
	return &provider.PaymentIntent{Reference: ref, CheckoutURL: "https://checkout.test/" + ref}, nil
}

func (f *fakeProvider) calls() (transfers, cashouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers), len(f.cashouts)
}

type recordingNotifier struct {
	mu        sync.Mutex
	payments  []models.Payment
	credited  []int64
	completed []models.Withdrawal
	failed    []models.Withdrawal
	requested []models.Withdrawal
}

func (n *recordingNotifier) PaymentCompleted(p models.Payment, _ models.Campaign, credited int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, p)
	n.credited = append(n.credited, credited)
}

func (n *recordingNotifier) PayoutCompleted(w models.Withdrawal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, w)
}

func (n *recordingNotifier) PayoutFailed(w models.Withdrawal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, w)
}

func (n *recordingNotifier) WithdrawalRequested(w models.Withdrawal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, w)
}

func (n *recordingNotifier) count() (payments, completed, failed, requested int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payments), len(n.completed), len(n.failed), len(n.requested)
}

type fixture struct {
	ledger   *storage.MemoryLedger
	provider *fakeProvider
	notifier *recordingNotifier
	owner    models.User
	donor    models.User
	campaign models.Campaign
}

func newFixture(balance int64) *fixture {
	f := &fixture{
		ledger:   storage.NewMemoryLedger(),
		provider: newFakeProvider(),
		notifier: &recordingNotifier{},
		owner:    models.User{ID: uuid.New(), Login: "owner", Email: "owner@example.com"},
		donor:    models.User{ID: uuid.New(), Login: "donor", Email: "donor@example.com", AmountContributed: decimal.Zero},
	}
	f.campaign = models.Campaign{
		ID:               uuid.New(),
		CreatorID:        f.owner.ID,
		Title:            "Clean water",
		Goal:             1_000_000,
		AmountReceived:   balance,
		AccountReference: "acc-campaign",
		EndDate:          time.Now().Add(24 * time.Hour),
		Status:           models.CampaignStatusActive,
	}
	f.ledger.SeedUser(f.owner)
	f.ledger.SeedUser(f.donor)
	f.ledger.SeedCampaign(f.campaign)
	return f
}

func (f *fixture) reconciler(policy AmountPolicy) *Reconciler {
	return NewReconciler(f.ledger, f.provider, f.notifier, policy, nil)
}

func (f *fixture) cashout() *CashoutService {
	return NewCashoutService(f.ledger, f.provider, f.notifier, DefaultFeeRate, time.Second, nil)
}

// addPayment записывает незавершённый платёж и сумму, которую провайдер сообщит при сверке.
func (f *fixture) addPayment(ref string, donor *uuid.UUID, name string, amount int64) models.Payment {
	p := models.Payment{
		ExternalReference: ref,
		CampaignID:        f.campaign.ID,
		DonorID:           donor,
		DonorName:         name,
		Email:             "donor@example.com",
		Amount:            amount,
	}
	if err := f.ledger.CreatePayment(context.Background(), &p); err != nil {
		panic(err)
	}
	f.provider.settle(ref, amount)
	return p
}

func (f *fixture) balance() int64 {
	c, err := f.ledger.GetCampaign(context.Background(), f.campaign.ID)
	if err != nil {
		panic(err)
	}
	return c.AmountReceived
}

func (f *fixture) contribution(id uuid.UUID) decimal.Decimal {
	u, err := f.ledger.GetUser(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return u.AmountContributed
}

func completedEvent(ref string, amount int64) models.WebhookEvent {
	return models.WebhookEvent{Kind: models.EventCompleted, Reference: ref, Status: "successful", Amount: amount}
}

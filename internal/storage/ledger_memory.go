package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
)

// MemoryLedger - реализация леджера в памяти для тестов.
// Повторяет семантику условных обновлений PostgresLedger, транзакции сериализуются.
type MemoryLedger struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	payments    map[uuid.UUID]models.Payment
	campaigns   map[uuid.UUID]models.Campaign
	withdrawals map[uuid.UUID]models.Withdrawal
	users       map[uuid.UUID]models.User
}

// NewMemoryLedger создаёт пустой леджер в памяти.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{state: &memState{
		payments:    map[uuid.UUID]models.Payment{},
		campaigns:   map[uuid.UUID]models.Campaign{},
		withdrawals: map[uuid.UUID]models.Withdrawal{},
		users:       map[uuid.UUID]models.User{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		payments:    make(map[uuid.UUID]models.Payment, len(s.payments)),
		campaigns:   make(map[uuid.UUID]models.Campaign, len(s.campaigns)),
		withdrawals: make(map[uuid.UUID]models.Withdrawal, len(s.withdrawals)),
		users:       make(map[uuid.UUID]models.User, len(s.users)),
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// SeedCampaign добавляет кампанию.
func (l *MemoryLedger) SeedCampaign(c models.Campaign) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	l.state.campaigns[c.ID] = c
}

// SeedUser добавляет пользователя.
func (l *MemoryLedger) SeedUser(u models.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	l.state.users[u.ID] = u
}

// Withdrawals возвращает все выводы (для проверок в тестах).
func (l *MemoryLedger) Withdrawals() []models.Withdrawal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Withdrawal, 0, len(l.state.withdrawals))
	for _, w := range l.state.withdrawals {
		out = append(out, w)
	}
	return out
}

func (l *MemoryLedger) InTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	work := l.state.clone()
	if err := fn(memTx{s: work}); err != nil {
		return err
	}
	l.state = work
	return nil
}

func (l *MemoryLedger) CreatePayment(ctx context.Context, p *models.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.state.payments {
		if existing.ExternalReference == p.ExternalReference {
			return ErrPaymentExists
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Completed = false
	p.CreatedAt = time.Now()
	l.state.payments[p.ID] = *p
	return nil
}

func (l *MemoryLedger) FindPaymentByReference(ctx context.Context, ref string) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.state.payments {
		if p.ExternalReference == ref {
			p := p
			return &p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (l *MemoryLedger) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.state.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return &c, nil
}

func (l *MemoryLedger) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.state.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (l *MemoryLedger) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.state.withdrawals {
		if w.ExternalReference != "" && existing.ExternalReference == w.ExternalReference {
			return ErrWithdrawalExists
		}
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = models.WithdrawalStatusPending
	}
	w.CreatedAt = time.Now()
	l.state.withdrawals[w.ID] = *w
	return nil
}

func (l *MemoryLedger) FindWithdrawalByReference(ctx context.Context, ref string) (*models.Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.state.withdrawals {
		if w.ExternalReference == ref {
			w := w
			return &w, nil
		}
	}
	return nil, ErrWithdrawalNotFound
}

func (l *MemoryLedger) ListWithdrawalsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Withdrawal
	for _, w := range l.state.withdrawals {
		if w.CampaignID == campaignID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *MemoryLedger) CompleteExpiredCampaigns(ctx context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, c := range l.state.campaigns {
		if c.Status == models.CampaignStatusActive && !c.Deleted && c.EndDate.Before(now) {
			c.Status = models.CampaignStatusCompleted
			l.state.campaigns[id] = c
			n++
		}
	}
	return n, nil
}

func (l *MemoryLedger) MarkPaymentCompleted(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memTx{s: l.state}.MarkPaymentCompleted(ctx, id)
}

func (l *MemoryLedger) AdjustCampaignAmountReceived(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memTx{s: l.state}.AdjustCampaignAmountReceived(ctx, id, delta)
}

func (l *MemoryLedger) IncrementUserContribution(ctx context.Context, id uuid.UUID, amountMinor int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memTx{s: l.state}.IncrementUserContribution(ctx, id, amountMinor)
}

func (l *MemoryLedger) MarkWithdrawalCompleted(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memTx{s: l.state}.MarkWithdrawalCompleted(ctx, id)
}

func (l *MemoryLedger) MarkWithdrawalFailed(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return memTx{s: l.state}.MarkWithdrawalFailed(ctx, id)
}

// memTx выполняет операции над состоянием без блокировки; вызывающий держит mu.
type memTx struct {
	s *memState
}

func (t memTx) MarkPaymentCompleted(_ context.Context, id uuid.UUID) error {
	p, ok := t.s.payments[id]
	if !ok || p.Completed {
		return ErrAlreadyProcessed
	}
	now := time.Now()
	p.Completed = true
	p.CompletedAt = &now
	t.s.payments[id] = p
	return nil
}

func (t memTx) AdjustCampaignAmountReceived(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	c, ok := t.s.campaigns[id]
	if !ok {
		return 0, ErrCampaignNotFound
	}
	c.AmountReceived += delta
	t.s.campaigns[id] = c
	return c.AmountReceived, nil
}

func (t memTx) IncrementUserContribution(_ context.Context, id uuid.UUID, amountMinor int64) error {
	u, ok := t.s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.AmountContributed = u.AmountContributed.Add(models.ToMajorUnits(amountMinor))
	t.s.users[id] = u
	return nil
}

func (t memTx) MarkWithdrawalCompleted(_ context.Context, id uuid.UUID) error {
	return t.transition(id, models.WithdrawalStatusCompleted)
}

func (t memTx) MarkWithdrawalFailed(_ context.Context, id uuid.UUID) error {
	return t.transition(id, models.WithdrawalStatusFailed)
}

func (t memTx) transition(id uuid.UUID, to models.WithdrawalStatus) error {
	w, ok := t.s.withdrawals[id]
	if !ok || w.Status != models.WithdrawalStatusPending {
		return ErrAlreadyProcessed
	}
	now := time.Now()
	w.Status = to
	w.CompletedAt = &now
	t.s.withdrawals[id] = w
	return nil
}

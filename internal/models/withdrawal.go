package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus описывает статус вывода средств.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal представляет вывод средств кампании (комиссия платформы + выплата).
type Withdrawal struct {
	ID                uuid.UUID        `db:"id"`
	CampaignID        uuid.UUID        `db:"campaign_id"`
	UserID            uuid.UUID        `db:"user_id"`
	ExternalReference string           `db:"external_reference"`
	Amount            int64            `db:"amount"`
	FeeAmount         int64            `db:"fee_amount"`
	PayoutAmount      int64            `db:"payout_amount"`
	FeeReference      string           `db:"fee_reference"`
	FeeTransferred    bool             `db:"fee_transferred"`
	PayoutInitiated   bool             `db:"payout_initiated"`
	PhoneNumber       string           `db:"phone_number"`
	Provider          string           `db:"provider"`
	Status            WithdrawalStatus `db:"status"`
	PaymentDetails    json.RawMessage  `db:"payment_details"`
	CreatedAt         time.Time        `db:"created_at"`
	CompletedAt       *time.Time       `db:"completed_at"`
}

// SettledAmount возвращает сумму, фактически ушедшую со счёта кампании:
// только те ноги перевода, которые провайдер принял.
func (w *Withdrawal) SettledAmount() int64 {
	var total int64
	if w.FeeTransferred {
		total += w.FeeAmount
	}
	if w.PayoutInitiated {
		total += w.PayoutAmount
	}
	return total
}

// CashoutRequest DTO для запроса вывода средств.
type CashoutRequest struct {
	CampaignID  uuid.UUID       `json:"campaignId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PhoneNumber string          `json:"phoneNumber" validate:"required,e164"`
	Provider    string          `json:"provider" validate:"required"`
}

// CashoutResponse DTO ответа на запрос вывода.
type CashoutResponse struct {
	WithdrawalID     uuid.UUID `json:"withdrawal_id"`
	Reference        string    `json:"reference"`
	Status           string    `json:"status"`
	AmountForMain    int64     `json:"amount_for_main"`
	AmountForCashout int64     `json:"amount_for_cashout"`
}

// WithdrawalResponse DTO для истории выводов.
type WithdrawalResponse struct {
	ID          uuid.UUID `json:"id"`
	Reference   string    `json:"reference"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   string    `json:"created_at"`
	CompletedAt string    `json:"completed_at,omitempty"`
}

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AnonymousDonor - отображаемое имя анонимного жертвователя.
const AnonymousDonor = "Anonymous"

// Payment представляет пожертвование (намерение оплаты и его итог).
type Payment struct {
	ID                uuid.UUID  `db:"id"`
	ExternalReference string     `db:"external_reference"`
	CampaignID        uuid.UUID  `db:"campaign_id"`
	DonorID           *uuid.UUID `db:"donor_id"`
	DonorName         string     `db:"donor_name"`
	Email             string     `db:"email"`
	Amount            int64      `db:"amount"`
	Completed         bool       `db:"completed"`
	CreatedAt         time.Time  `db:"created_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

// IsAnonymous сообщает, что пожертвование не привязано к пользователю.
func (p *Payment) IsAnonymous() bool {
	return p.DonorID == nil || strings.EqualFold(strings.TrimSpace(p.DonorName), AnonymousDonor)
}

// DonationIntentRequest DTO для создания намерения пожертвования.
type DonationIntentRequest struct {
	Name   string          `json:"name"`
	Email  string          `json:"email" validate:"required,email"`
	Amount decimal.Decimal `json:"amount"`
}

// DonationIntentResponse DTO ответа с кодом оплаты.
type DonationIntentResponse struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	Amount      int64  `json:"amount"`
}

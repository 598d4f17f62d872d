package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User представляет участника платформы (жертвователя или автора кампании).
type User struct {
	ID                uuid.UUID       `db:"id"`
	ExternalAuthRef   string          `db:"external_auth_ref"`
	Login             string          `db:"login"`
	Email             string          `db:"email"`
	AmountContributed decimal.Decimal `db:"amount_contributed"`
	KYCVerified       bool            `db:"kyc_verified"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

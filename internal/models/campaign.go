package models

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus описывает статус модерации и жизненного цикла кампании.
type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusRejected  CampaignStatus = "rejected"
)

// Campaign представляет кампанию по сбору средств.
// AmountReceived хранится в минорных единицах и меняется только через сверку событий провайдера.
type Campaign struct {
	ID               uuid.UUID      `db:"id"`
	CreatorID        uuid.UUID      `db:"creator_id"`
	Title            string         `db:"title"`
	Goal             int64          `db:"goal"`
	AmountReceived   int64          `db:"amount_received"`
	AccountReference string         `db:"account_reference"`
	EndDate          time.Time      `db:"end_date"`
	Status           CampaignStatus `db:"status"`
	Deleted          bool           `db:"deleted"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetCampaign возвращает кампанию, включая мягко удалённые: сверка платежей
// по удалённой кампании всё равно должна пройти.
func (q queries) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `
		SELECT id, creator_id, title, goal, amount_received, account_reference, end_date, status, deleted, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	var c models.Campaign
	err := q.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.CreatorID,
		&c.Title,
		&c.Goal,
		&c.AmountReceived,
		&c.AccountReference,
		&c.EndDate,
		&c.Status,
		&c.Deleted,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

// AdjustCampaignAmountReceived атомарно изменяет собранную сумму на delta и возвращает новое значение.
func (q queries) AdjustCampaignAmountReceived(ctx context.Context, campaignID uuid.UUID, delta int64) (int64, error) {
	query := `
		UPDATE campaigns
		SET amount_received = amount_received + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING amount_received
	`

	var total int64
	err := q.db.QueryRow(ctx, query, delta, campaignID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCampaignNotFound
		}
		return 0, fmt.Errorf("failed to adjust campaign amount: %w", err)
	}
	return total, nil
}

// CompleteExpiredCampaigns завершает активные кампании с истёкшей датой окончания.
func (q queries) CompleteExpiredCampaigns(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE campaigns
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND end_date < $3 AND deleted = FALSE
	`

	result, err := q.db.Exec(ctx, query, models.CampaignStatusCompleted, models.CampaignStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("failed to complete expired campaigns: %w", err)
	}
	return result.RowsAffected(), nil
}

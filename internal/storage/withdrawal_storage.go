package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, campaign_id, user_id, external_reference, amount, fee_amount, payout_amount,
	fee_reference, fee_transferred, payout_initiated, phone_number, provider, status, payment_details,
	created_at, completed_at`

// CreateWithdrawal создаёт запись вывода средств.
func (q queries) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = models.WithdrawalStatusPending
	}

	query := `
		INSERT INTO withdrawals (id, campaign_id, user_id, external_reference, amount, fee_amount, payout_amount,
			fee_reference, fee_transferred, payout_initiated, phone_number, provider, status, payment_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		RETURNING created_at
	`

	details := w.PaymentDetails
	if len(details) == 0 {
		details = []byte("{}")
	}

	err := q.db.QueryRow(ctx, query,
		w.ID,
		w.CampaignID,
		w.UserID,
		w.ExternalReference,
		w.Amount,
		w.FeeAmount,
		w.PayoutAmount,
		w.FeeReference,
		w.FeeTransferred,
		w.PayoutInitiated,
		w.PhoneNumber,
		w.Provider,
		w.Status,
		details,
	).Scan(&w.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrWithdrawalExists
		}
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

// FindWithdrawalByReference ищет вывод по ссылке выплаты у провайдера.
func (q queries) FindWithdrawalByReference(ctx context.Context, ref string) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE external_reference = $1`
	return scanWithdrawal(q.db.QueryRow(ctx, query, ref))
}

// ListWithdrawalsByCampaign возвращает выводы кампании (новые первыми).
func (q queries) ListWithdrawalsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE campaign_id = $1 ORDER BY created_at DESC`

	rows, err := q.db.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return withdrawals, nil
}

// MarkWithdrawalCompleted переводит вывод pending -> completed.
func (q queries) MarkWithdrawalCompleted(ctx context.Context, withdrawalID uuid.UUID) error {
	return q.transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusCompleted)
}

// MarkWithdrawalFailed переводит вывод pending -> failed.
func (q queries) MarkWithdrawalFailed(ctx context.Context, withdrawalID uuid.UUID) error {
	return q.transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusFailed)
}

func (q queries) transitionWithdrawal(ctx context.Context, id uuid.UUID, to models.WithdrawalStatus) error {
	query := `
		UPDATE withdrawals
		SET status = $1, completed_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := q.db.Exec(ctx, query, to, id, models.WithdrawalStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal %s: %w", to, err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.CampaignID,
		&w.UserID,
		&w.ExternalReference,
		&w.Amount,
		&w.FeeAmount,
		&w.PayoutAmount,
		&w.FeeReference,
		&w.FeeTransferred,
		&w.PayoutInitiated,
		&w.PhoneNumber,
		&w.Provider,
		&w.Status,
		&w.PaymentDetails,
		&w.CreatedAt,
		&w.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
	}
	return &w, nil
}

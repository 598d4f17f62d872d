package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, external_reference, campaign_id, donor_id, donor_name, email, amount, completed, created_at, completed_at`

// CreatePayment записывает намерение пожертвования.
func (q queries) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO payments (id, external_reference, campaign_id, donor_id, donor_name, email, amount, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())
		RETURNING created_at
	`

	err := q.db.QueryRow(ctx, query,
		p.ID,
		p.ExternalReference,
		p.CampaignID,
		p.DonorID,
		p.DonorName,
		p.Email,
		p.Amount,
	).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPaymentExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	p.Completed = false
	return nil
}

// FindPaymentByReference ищет платёж по внешней ссылке провайдера.
func (q queries) FindPaymentByReference(ctx context.Context, ref string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_reference = $1`
	return scanPayment(q.db.QueryRow(ctx, query, ref))
}

// MarkPaymentCompleted переводит платёж в завершённый, только если он ещё не завершён.
func (q queries) MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID) error {
	query := `
		UPDATE payments
		SET completed = TRUE, completed_at = NOW()
		WHERE id = $1 AND completed = FALSE
	`

	result, err := q.db.Exec(ctx, query, paymentID)
	if err != nil {
		return fmt.Errorf("failed to mark payment completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.ExternalReference,
		&p.CampaignID,
		&p.DonorID,
		&p.DonorName,
		&p.Email,
		&p.Amount,
		&p.Completed,
		&p.CreatedAt,
		&p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}

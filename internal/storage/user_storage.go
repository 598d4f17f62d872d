package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetUser ищет пользователя по ID.
func (q queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, external_auth_ref, login, email, amount_contributed, kyc_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := q.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.ExternalAuthRef,
		&user.Login,
		&user.Email,
		&user.AmountContributed,
		&user.KYCVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// IncrementUserContribution атомарно увеличивает сумму вкладов пользователя.
// Сумма приходит в минорных единицах, в базе хранится в основных.
func (q queries) IncrementUserContribution(ctx context.Context, userID uuid.UUID, amountMinor int64) error {
	query := `
		UPDATE users
		SET amount_contributed = amount_contributed + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := q.db.Exec(ctx, query, models.ToMajorUnits(amountMinor), userID)
	if err != nil {
		return fmt.Errorf("failed to increment contribution: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

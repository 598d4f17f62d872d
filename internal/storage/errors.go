package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound - базовая ошибка отсутствия записи.
	ErrNotFound = errors.New("not found")

	ErrPaymentNotFound    = fmt.Errorf("payment %w", ErrNotFound)
	ErrCampaignNotFound   = fmt.Errorf("campaign %w", ErrNotFound)
	ErrWithdrawalNotFound = fmt.Errorf("withdrawal %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)

	// ErrAlreadyProcessed возвращается, когда условное обновление не затронуло ни одной строки.
	// Для вызывающего это успешный no-op.
	ErrAlreadyProcessed = errors.New("already processed")

	ErrPaymentExists    = errors.New("payment with this reference already exists")
	ErrWithdrawalExists = errors.New("withdrawal with this reference already exists")
)

// querier - общий интерфейс pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerTx - операции изменения балансов и статусов. Каждая реализована
// одним условным или атомарным UPDATE на стороне базы.
type LedgerTx interface {
	MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID) error
	AdjustCampaignAmountReceived(ctx context.Context, campaignID uuid.UUID, delta int64) (int64, error)
	IncrementUserContribution(ctx context.Context, userID uuid.UUID, amountMinor int64) error
	MarkWithdrawalCompleted(ctx context.Context, withdrawalID uuid.UUID) error
	MarkWithdrawalFailed(ctx context.Context, withdrawalID uuid.UUID) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}

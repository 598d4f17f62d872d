package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// queries содержит SQL-операции леджера поверх пула или транзакции.
type queries struct {
	db querier
}

// PostgresLedger - единая точка чтения и записи платежей, кампаний, выводов и вкладов.
type PostgresLedger struct {
	queries
	pool *pgxpool.Pool
}

// NewPostgresLedger создаёт леджер поверх пула соединений.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{
		queries: queries{db: pool},
		pool:    pool,
	}
}

// InTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
func (l *PostgresLedger) InTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

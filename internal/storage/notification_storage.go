package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotificationStorage хранит уведомления в приложении.
type PostgresNotificationStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresNotificationStorage создаёт новый экземпляр.
func NewPostgresNotificationStorage(pool *pgxpool.Pool) *PostgresNotificationStorage {
	return &PostgresNotificationStorage{pool: pool}
}

// Create сохраняет уведомление.
func (s *PostgresNotificationStorage) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	query := `
		INSERT INTO notifications (id, user_id, kind, message, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
		RETURNING created_at
	`

	if err := s.pool.QueryRow(ctx, query, n.ID, n.UserID, n.Kind, n.Message).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// PurgeOlderThan мягко удаляет уведомления старше cutoff и окончательно стирает
// ранее помеченные удалёнными.
func (s *PostgresNotificationStorage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM notifications WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE notifications
		SET deleted_at = NOW()
		WHERE deleted_at IS NULL AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete notifications: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	return result.RowsAffected(), nil
}

// PostgresAuditStorage хранит журнал аудита.
type PostgresAuditStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditStorage создаёт новый экземпляр.
func NewPostgresAuditStorage(pool *pgxpool.Pool) *PostgresAuditStorage {
	return &PostgresAuditStorage{pool: pool}
}

// Create сохраняет запись аудита.
func (s *PostgresAuditStorage) Create(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	details := e.Details
	if len(details) == 0 {
		details = []byte("{}")
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query, e.ID, e.ActorID, e.Action, e.EntityType, e.EntityID, details).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationKind - тип уведомления в приложении.
type NotificationKind string

const (
	NotificationPaymentCompleted NotificationKind = "payment_completed"
	NotificationPayoutCompleted  NotificationKind = "payout_completed"
	NotificationPayoutFailed     NotificationKind = "payout_failed"
)

// Notification - уведомление пользователя в приложении.
type Notification struct {
	ID        uuid.UUID        `db:"id"`
	UserID    uuid.UUID        `db:"user_id"`
	Kind      NotificationKind `db:"kind"`
	Message   string           `db:"message"`
	Read      bool             `db:"read"`
	CreatedAt time.Time        `db:"created_at"`
	DeletedAt *time.Time       `db:"deleted_at"`
}

// AuditEntry - запись журнала аудита.
type AuditEntry struct {
	ID         uuid.UUID       `db:"id"`
	ActorID    *uuid.UUID      `db:"actor_id"`
	Action     string          `db:"action"`
	EntityType string          `db:"entity_type"`
	EntityID   string          `db:"entity_id"`
	Details    json.RawMessage `db:"details"`
	CreatedAt  time.Time       `db:"created_at"`
}

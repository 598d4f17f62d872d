package storage

import (
	"context"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
)

// MockNotificationStorage - мок для тестов.
type MockNotificationStorage struct {
	CreateFunc         func(ctx context.Context, n *models.Notification) error
	PurgeOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockNotificationStorage) Create(ctx context.Context, n *models.Notification) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	return nil
}

func (m *MockNotificationStorage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeOlderThanFunc != nil {
		return m.PurgeOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockAuditStorage - мок для тестов.
type MockAuditStorage struct {
	CreateFunc func(ctx context.Context, e *models.AuditEntry) error
}

func (m *MockAuditStorage) Create(ctx context.Context, e *models.AuditEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, e)
	}
	return nil
}

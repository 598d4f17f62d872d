package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	emailQueueKey  = "emails"
	emailFailedKey = "emails:failed"
)

// Mailer ставит письмо на отправку.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailJob - письмо в очереди.
type EmailJob struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// RedisMailer кладёт письма в список Redis; отправкой занимается MailWorker.
type RedisMailer struct {
	redis  redis.Cmdable
	logger *zap.Logger
}

func NewRedisMailer(rdb redis.Cmdable, logger *zap.Logger) *RedisMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMailer{redis: rdb, logger: logger}
}

func (m *RedisMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("empty recipient for %q", subject)
	}

	data, err := json.Marshal(EmailJob{
		To:      to,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	if err := m.redis.LPush(ctx, emailQueueKey, data).Err(); err != nil {
		return fmt.Errorf("queue email to %s: %w", to, err)
	}

	m.logger.Debug("email queued", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// LogMailer только логирует письма. Используется, когда Redis не настроен.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info("email (not delivered, no queue configured)", zap.String("to", to), zap.String("subject", subject))
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"time"

	"github.com/agamariel/crowdfund/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// SMTPConfig - параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// SendFunc отправляет одно письмо.
type SendFunc func(ctx context.Context, job EmailJob) error

// MailWorker забирает письма из очереди Redis и отправляет их с повторами.
type MailWorker struct {
	redis      redis.Cmdable
	send       SendFunc
	maxRetries uint64
	backoff    time.Duration
	logger     *zap.Logger
}

// NewMailWorker создаёт воркер, отправляющий письма через SMTP.
func NewMailWorker(rdb redis.Cmdable, cfg SMTPConfig, logger *zap.Logger) *MailWorker {
	return NewMailWorkerWithSender(rdb, smtpSender(cfg), logger)
}

// NewMailWorkerWithSender создаёт воркер с произвольной функцией отправки.
func NewMailWorkerWithSender(rdb redis.Cmdable, send SendFunc, logger *zap.Logger) *MailWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailWorker{
		redis:      rdb,
		send:       send,
		maxRetries: 2,
		backoff:    time.Second,
		logger:     logger,
	}
}

// Start запускает цикл обработки в отдельной горутине и останавливается по ctx.Done().
func (w *MailWorker) Start(ctx context.Context) {
	go func() {
		w.logger.Info("mail worker started")
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("mail worker stopped")
				return
			default:
				if err := w.processNext(ctx); err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.logger.Warn("mail worker error", zap.Error(err))
					time.Sleep(time.Second)
				}
			}
		}
	}()
}

func (w *MailWorker) processNext(ctx context.Context) error {
	result, err := w.redis.BRPop(ctx, 2*time.Second, emailQueueKey).Result()
	if err != nil {
		return err
	}
	if n, err := w.redis.LLen(ctx, emailQueueKey).Result(); err == nil {
		metrics.EmailQueueLength.Set(float64(n))
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("bad email data: %w", err)
	}

	return w.deliver(ctx, job)
}

// deliver отправляет письмо с экспоненциальной паузой; после исчерпания попыток
// письмо уходит в список emails:failed.
func (w *MailWorker) deliver(ctx context.Context, job EmailJob) error {
	b := retry.WithMaxRetries(w.maxRetries, retry.NewExponential(w.backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		job.Tries++
		if err := w.send(ctx, job); err != nil {
			w.logger.Warn("email send failed", zap.String("to", job.To), zap.Int("attempt", job.Tries), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordNotificationTask("email", "failed")
		return w.saveFailed(ctx, job, err)
	}

	metrics.RecordNotificationTask("email", "sent")
	w.logger.Info("email sent", zap.String("to", job.To), zap.String("subject", job.Subject))
	return nil
}

func (w *MailWorker) saveFailed(ctx context.Context, job EmailJob, cause error) error {
	data, err := json.Marshal(map[string]any{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	})
	if err != nil {
		return err
	}
	if err := w.redis.LPush(ctx, emailFailedKey, data).Err(); err != nil {
		return fmt.Errorf("move email to failed queue: %w", err)
	}
	w.logger.Error("email moved to failed queue", zap.String("to", job.To), zap.Error(cause))
	return nil
}

// smtpSender собирает простое текстовое письмо и отправляет через net/smtp.
func smtpSender(cfg SMTPConfig) SendFunc {
	return func(_ context.Context, job EmailJob) error {
		message := fmt.Sprintf("From: %s\r\n", cfg.From)
		message += fmt.Sprintf("To: %s\r\n", job.To)
		message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
		message += "\r\n" + job.Body

		var auth smtp.Auth
		if cfg.User != "" && cfg.Password != "" {
			auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
		}

		return smtp.SendMail(cfg.Host+":"+cfg.Port, auth, cfg.From, []string{job.To}, []byte(message))
	}
}

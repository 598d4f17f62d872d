package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisMailer_Send(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	m := NewRedisMailer(db, zap.NewNop())
	err := m.Send(context.Background(), "donor@example.com", "Payment completed", "thanks")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisMailer_SendEmptyRecipient(t *testing.T) {
	db, mock := redismock.NewClientMock()

	m := NewRedisMailer(db, zap.NewNop())
	assert.Error(t, m.Send(context.Background(), "", "subject", "body"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisMailer_SendRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*`).SetErr(errors.New("connection refused"))

	m := NewRedisMailer(db, zap.NewNop())
	assert.Error(t, m.Send(context.Background(), "a@example.com", "s", "b"))
}

func TestMailWorker_ProcessNext(t *testing.T) {
	db, mock := redismock.NewClientMock()

	job, _ := json.Marshal(EmailJob{To: "owner@example.com", Subject: "Withdrawal completed", Body: "done"})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(job)})
	mock.ExpectLLen("emails").SetVal(0)

	var sent []EmailJob
	w := NewMailWorkerWithSender(db, func(ctx context.Context, j EmailJob) error {
		sent = append(sent, j)
		return nil
	}, zap.NewNop())

	require.NoError(t, w.processNext(context.Background()))
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@example.com", sent[0].To)
	assert.Equal(t, 1, sent[0].Tries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMailWorker_DeliverMovesToFailedQueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails:failed", `.*`).SetVal(1)

	attempts := 0
	w := NewMailWorkerWithSender(db, func(ctx context.Context, j EmailJob) error {
		attempts++
		return errors.New("smtp unavailable")
	}, zap.NewNop())
	w.backoff = time.Millisecond

	require.NoError(t, w.deliver(context.Background(), EmailJob{To: "x@example.com"}))
	assert.Equal(t, 3, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMailWorker_DeliverRetriesThenSucceeds(t *testing.T) {
	db, mock := redismock.NewClientMock()

	attempts := 0
	w := NewMailWorkerWithSender(db, func(ctx context.Context, j EmailJob) error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary")
		}
		return nil
	}, zap.NewNop())
	w.backoff = time.Millisecond

	require.NoError(t, w.deliver(context.Background(), EmailJob{To: "x@example.com"}))
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, NewLogMailer(nil).Send(context.Background(), "a@example.com", "s", "b"))
}

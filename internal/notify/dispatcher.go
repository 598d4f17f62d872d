package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agamariel/crowdfund/internal/metrics"
	"go.uber.org/zap"
)

// ErrDispatcherClosed возвращается при остановке с незавершёнными задачами.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Task - побочное действие, выполняемое в фоне. Ошибка только логируется.
type Task func(ctx context.Context) error

type job struct {
	name string
	fn   Task
}

// Dispatcher выполняет задачи "отправил и забыл" в ограниченном пуле воркеров.
// Dispatch никогда не блокирует вызывающего и не возвращает ошибку задачи.
type Dispatcher struct {
	queue       chan job
	taskTimeout time.Duration
	logger      *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher запускает workers воркеров с очередью размера queueSize.
func NewDispatcher(workers, queueSize int, taskTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if taskTimeout <= 0 {
		taskTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		queue:       make(chan job, queueSize),
		taskTimeout: taskTimeout,
		logger:      logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Dispatch ставит задачу в очередь. При переполнении задача отбрасывается.
func (d *Dispatcher) Dispatch(name string, fn Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher closed, dropping task", zap.String("task", name))
		metrics.RecordNotificationTask(name, "dropped")
		return
	}

	select {
	case d.queue <- job{name: name, fn: fn}:
	default:
		d.logger.Warn("notification queue full, dropping task", zap.String("task", name))
		metrics.RecordNotificationTask(name, "dropped")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification task panicked", zap.String("task", j.name), zap.Any("panic", r))
			metrics.RecordNotificationTask(j.name, "panic")
		}
	}()

	if err := j.fn(ctx); err != nil {
		d.logger.Warn("notification task failed", zap.String("task", j.name), zap.Error(err))
		metrics.RecordNotificationTask(j.name, "error")
		return
	}
	metrics.RecordNotificationTask(j.name, "ok")
}

// Close перестаёт принимать задачи и ждёт завершения очереди или ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrDispatcherClosed
	}
}

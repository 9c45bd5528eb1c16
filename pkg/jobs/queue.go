package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotRunning is returned when work is submitted to a queue that is not started.
var ErrNotRunning = errors.New("queue not running")

// Task is a unit of background work carrying a typed payload.
type Task[T any] struct {
	Key      string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task.
type Handler[T any] func(context.Context, Task[T]) error

// Config configures the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches tasks to a fixed pool of goroutines with bounded retries.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	tasks   chan Task[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for in-flight tasks to return.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.retries.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.tasks)))
}

// Submit enqueues a task without blocking past ctx.
func (q *Queue[T]) Submit(ctx context.Context, key string, payload T) error {
	return q.push(ctx, Task[T]{Key: key, Payload: payload, Enqueued: time.Now().UTC()})
}

// Pending reports buffered tasks not yet picked up.
func (q *Queue[T]) Pending() int {
	return len(q.tasks)
}

func (q *Queue[T]) push(ctx context.Context, task Task[T]) error {
	q.mu.RLock()
	running := q.running
	qctx := q.ctx
	q.mu.RUnlock()
	if !running {
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-qctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	case q.tasks <- task:
		return nil
	}
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue[T]) retry(task Task[T], err error) {
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.logger.Error("task exhausted retries", zap.String("key", task.Key), zap.Int("attempts", task.Attempt), zap.Error(err))
		return
	}
	q.logger.Warn("task failed, retrying", zap.String("key", task.Key), zap.Int("attempt", task.Attempt), zap.Error(err))

	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(q.cfg.RetryDelay * time.Duration(task.Attempt))
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.push(q.ctx, task); err != nil {
				q.logger.Warn("requeue failed", zap.String("key", task.Key), zap.Error(err))
			}
		}
	}()
}

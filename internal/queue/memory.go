package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Memory is an in-process queue: Enqueue fires a timer and the handler runs
// on its own goroutine once the delay elapses. Used when no broker URL is
// configured and as the test double. Jobs do not survive a restart, which
// matches the best-effort contract of the assistant pipeline.
type Memory struct {
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool
	wg       sync.WaitGroup
}

func NewMemory(logger *zap.SugaredLogger) *Memory {
	return &Memory{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

var _ Client = (*Memory)(nil)
var _ Server = (*Memory)(nil)

func (m *Memory) Register(taskType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[taskType] = h
}

func (m *Memory) Enqueue(_ context.Context, t Task, delay time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("queue: enqueue on closed memory queue")
	}
	h, ok := m.handlers[t.Type]
	if !ok {
		return fmt.Errorf("queue: no handler registered for task type %q", t.Type)
	}

	m.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer m.wg.Done()
		if err := h(context.Background(), t); err != nil {
			m.logger.Errorw("task handler failed", "type", t.Type, "error", err)
		}
	})
	return nil
}

// Run is a no-op for the in-memory adapter: handlers run on enqueue timers.
// It blocks until the context is canceled to mirror the AMQP server shape.
func (m *Memory) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close waits for in-flight handlers to finish.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

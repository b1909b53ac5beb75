package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryEnqueueDispatches(t *testing.T) {
	t.Parallel()

	m := NewMemory(zap.NewNop().Sugar())
	got := make(chan Task, 1)
	m.Register("job", func(_ context.Context, task Task) error {
		got <- task
		return nil
	})

	err := m.Enqueue(context.Background(), Task{Type: "job", Payload: []byte(`{"n":1}`)}, 10*time.Millisecond)
	require.NoError(t, err)

	select {
	case task := <-got:
		require.Equal(t, "job", task.Type)
		require.JSONEq(t, `{"n":1}`, string(task.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never called")
	}
}

func TestMemoryEnqueueDelay(t *testing.T) {
	t.Parallel()

	m := NewMemory(zap.NewNop().Sugar())
	done := make(chan time.Time, 1)
	m.Register("job", func(context.Context, Task) error {
		done <- time.Now()
		return nil
	})

	start := time.Now()
	require.NoError(t, m.Enqueue(context.Background(), Task{Type: "job"}, 50*time.Millisecond))

	select {
	case at := <-done:
		require.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never called")
	}
}

func TestMemoryEnqueueUnknownType(t *testing.T) {
	t.Parallel()

	m := NewMemory(zap.NewNop().Sugar())

	err := m.Enqueue(context.Background(), Task{Type: "nobody-home"}, 0)
	require.Error(t, err)
}

func TestMemoryCloseWaitsAndRejects(t *testing.T) {
	t.Parallel()

	m := NewMemory(zap.NewNop().Sugar())
	ran := make(chan struct{}, 1)
	m.Register("job", func(context.Context, Task) error {
		ran <- struct{}{}
		return nil
	})

	require.NoError(t, m.Enqueue(context.Background(), Task{Type: "job"}, 10*time.Millisecond))
	require.NoError(t, m.Close())

	select {
	case <-ran:
	default:
		t.Fatal("Close returned before the in-flight handler ran")
	}

	err := m.Enqueue(context.Background(), Task{Type: "job"}, 0)
	require.Error(t, err)
}

func TestMemoryRunBlocksUntilCancel(t *testing.T) {
	t.Parallel()

	m := NewMemory(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	select {
	case <-errCh:
		t.Fatal("Run returned before cancel")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

// Package queue carries background jobs from mutations to workers. The
// assistant pipeline is its only current client: message ingestion enqueues
// a job, a worker picks it up after a short fixed delay.
package queue

import (
	"context"
	"time"
)

// Task is a background job with a stable type name and opaque payload bytes.
// Payload encoding is up to callers; the assistant jobs use JSON.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a single task. Errors are logged by the adapter and the
// task is dropped: assistant jobs degrade internally and must not be retried
// (a replay would double-post the reply).
type Handler func(ctx context.Context, task Task) error

// Client enqueues tasks for asynchronous processing after the given delay.
type Client interface {
	Enqueue(ctx context.Context, t Task, delay time.Duration) error
	Close() error
}

// Server runs workers that handle enqueued tasks.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}

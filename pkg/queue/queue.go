package queue

import (
	"context"
	"errors"

	"github.com/z-wentao/docscribe/pkg/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Queue hands scheduled jobs to workers.
type Queue interface {
	// Enqueue never blocks. It returns ErrQueueFull when the buffer is full.
	Enqueue(job *models.Job) error

	// Dequeue blocks until a job is available, the queue is closed and
	// drained, or ctx is done.
	Dequeue(ctx context.Context) (*models.Job, error)

	Len() int

	Close() error
}

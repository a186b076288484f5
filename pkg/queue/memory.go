package queue

import (
	"context"
	"sync"

	"github.com/z-wentao/docscribe/pkg/models"
)

// MemoryQueue is a buffered channel of jobs.
type MemoryQueue struct {
	mu     sync.RWMutex
	queue  chan *models.Job
	closed bool
}

func NewMemoryQueue(bufferSize int) *MemoryQueue {
	return &MemoryQueue{
		queue: make(chan *models.Job, bufferSize),
	}
}

func (mq *MemoryQueue) Enqueue(job *models.Job) error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	if mq.closed {
		return ErrQueueClosed
	}

	select {
	case mq.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue keeps returning buffered jobs after Close until the buffer is
// empty.
func (mq *MemoryQueue) Dequeue(ctx context.Context) (*models.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job, ok := <-mq.queue:
		if !ok {
			return nil, ErrQueueClosed
		}
		return job, nil
	}
}

func (mq *MemoryQueue) Len() int {
	return len(mq.queue)
}

// Close is idempotent.
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if !mq.closed {
		mq.closed = true
		close(mq.queue)
	}
	return nil
}

package queue

import (
	"context"
	"sync"
	"time"

	"ecojourney/internal/util"
	"ecojourney/pkg/domain"
)

// MemoryQueue records enqueued notifications for tests. If Start has been
// called, notifications are also handed to the handler synchronously.
type MemoryQueue struct {
	mu       sync.Mutex
	enqueued []domain.Notification
	handler  Handler
}

// NewMemoryQueue initializes an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, n domain.Notification) (JobStatus, error) {
	q.mu.Lock()
	q.enqueued = append(q.enqueued, n)
	handler := q.handler
	q.mu.Unlock()
	if handler != nil {
		_ = handler(ctx, n)
	}
	now := time.Now().UTC()
	return JobStatus{
		ID:        util.NewID(),
		Kind:      string(n.Kind),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (q *MemoryQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
}

// Enqueued returns a copy of all notifications enqueued so far.
func (q *MemoryQueue) Enqueued() []domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Notification, len(q.enqueued))
	copy(out, q.enqueued)
	return out
}

package queue

import (
	"context"
	"time"

	"ecojourney/pkg/domain"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// JobStatus tracks the delivery state of a queued notification.
type JobStatus struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler processes a dequeued notification. A non-nil error triggers a retry.
type Handler func(ctx context.Context, n domain.Notification) error

// Queue delivers notification jobs to background workers.
type Queue interface {
	Enqueue(ctx context.Context, n domain.Notification) (JobStatus, error)
	Start(ctx context.Context, concurrency int, handler Handler)
}

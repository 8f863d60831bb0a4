// Package queue provides the ingestion task queue.
//
// Delivery is at-most-once: Pop removes the task from the queue in the
// same transaction that returns it, so a worker crash loses the in-flight
// task. Exclusivity across worker processes comes from that atomic pop;
// the worker adds no locking of its own.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bkaradeniz/ragline/internal/task"
)

// ErrEmpty reports that no task became available within the wait bound.
var ErrEmpty = errors.New("queue empty")

// Queue carries ingestion task messages between the producer and workers.
type Queue interface {
	// Push appends a task to the tail of the queue.
	Push(ctx context.Context, msg *task.Message) error
	// Pop removes and returns the head task, blocking up to wait and
	// re-polling periodically. Returns ErrEmpty when nothing arrived.
	Pop(ctx context.Context, wait time.Duration) (*task.Message, error)
	// Len reports the number of queued tasks.
	Len(ctx context.Context) (int, error)
	// Close releases resources.
	Close() error
}

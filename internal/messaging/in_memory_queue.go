package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrQueueClosed = errors.New("queue is closed")

type inMemoryTask struct {
	queue   string
	payload []byte
}

func (t *inMemoryTask) Type() string {
	return t.queue
}

func (t *inMemoryTask) Payload() []byte {
	return t.payload
}

func (t *inMemoryTask) Ack() error {
	return nil
}

func (t *inMemoryTask) Nack() error {
	return nil
}

func (t *inMemoryTask) Reject() error {
	return nil
}

// Requeue is a no-op: interrupted runs stay in processing in the store and
// are republished at startup.
func (t *inMemoryTask) Requeue() error {
	return nil
}

// InMemoryQueue is both the Publisher and the Reciever for a single process
// deployment.
type InMemoryQueue struct {
	mu     sync.RWMutex
	tasks  chan Task
	done   chan struct{}
	closed sync.Once
}

var (
	_ Publisher = (*InMemoryQueue)(nil)
	_ Reciever  = (*InMemoryQueue)(nil)
)

func NewInMemoryQueue(size int) *InMemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &InMemoryQueue{
		tasks: make(chan Task, size),
		done:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) publishTaskInternal(ctx context.Context, queue string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", queue, err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- &inMemoryTask{queue: queue, payload: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

func (q *InMemoryQueue) PublishAnalysisTask(ctx context.Context, payload AnalysisTaskPayload) error {
	return q.publishTaskInternal(ctx, AnalysisQueue, payload)
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

// Close stops accepting tasks and closes the task channel once in-flight
// publishes have returned. It is safe to call more than once.
func (q *InMemoryQueue) Close() {
	q.closed.Do(func() {
		close(q.done)
		q.mu.Lock()
		close(q.tasks)
		q.mu.Unlock()
	})
}

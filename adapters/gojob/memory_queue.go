package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// MemoryQueue is an in-process queue for single replica deployments.
// Messages whose idempotency key is already pending or in flight are
// dropped on enqueue.
type MemoryQueue struct {
	mu          sync.Mutex
	ready       chan *job.ExecutionMessage
	keys        map[string]struct{}
	deadLetters []*job.ExecutionMessage
	afterFunc   func(time.Duration, func())
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &MemoryQueue{
		ready: make(chan *job.ExecutionMessage, capacity),
		keys:  map[string]struct{}{},
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	q.mu.Lock()
	if key != "" {
		if _, exists := q.keys[key]; exists {
			q.mu.Unlock()
			return nil
		}
		q.keys[key] = struct{}{}
	}
	q.mu.Unlock()
	return q.push(ctx, msg)
}

func (q *MemoryQueue) push(ctx context.Context, msg *job.ExecutionMessage) error {
	select {
	case q.ready <- msg:
		return nil
	case <-ctx.Done():
		q.release(msg)
		return ctx.Err()
	default:
		q.release(msg)
		return fmt.Errorf("gojob: queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case msg := <-q.ready:
		return &memoryDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.deadLetters...)
}

func (q *MemoryQueue) release(msg *job.ExecutionMessage) {
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.keys, key)
	q.mu.Unlock()
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() { d.queue.release(d.msg) })
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.once.Do(func() {
		switch {
		case opts.DeadLetter:
			d.queue.mu.Lock()
			d.queue.deadLetters = append(d.queue.deadLetters, d.msg)
			d.queue.mu.Unlock()
			d.queue.release(d.msg)
		case opts.Requeue:
			requeue := func() { _ = d.queue.push(context.Background(), d.msg) }
			if opts.Delay > 0 {
				d.queue.afterFunc(opts.Delay, requeue)
			} else {
				requeue()
			}
		default:
			d.queue.release(d.msg)
		}
	})
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)

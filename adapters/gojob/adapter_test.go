package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-reveal/core"
)

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacked = true
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	phases []string
	last   worker.Event
}

func (h *capturingHook) OnStart(_ context.Context, event worker.Event) {
	h.phases = append(h.phases, "start")
	h.last = event
}

func (h *capturingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.phases = append(h.phases, "success")
	h.last = event
}

func (h *capturingHook) OnFailure(_ context.Context, event worker.Event) {
	h.phases = append(h.phases, "failure")
	h.last = event
}

func (h *capturingHook) OnRetry(_ context.Context, event worker.Event) {
	h.phases = append(h.phases, "retry")
	h.last = event
}

func TestNewPruneJobMessage_HourlyIdempotencyKey(t *testing.T) {
	policy := core.RetentionPolicy{TTL: 720 * time.Hour, RowCap: 5000}
	first := NewPruneJobMessage(policy, time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC))
	second := NewPruneJobMessage(policy, time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC))
	next := NewPruneJobMessage(policy, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	if first.JobID != JobIDAuditPrune {
		t.Fatalf("unexpected job id %q", first.JobID)
	}
	if first.IdempotencyKey != second.IdempotencyKey {
		t.Fatalf("expected same key within the hour: %q vs %q", first.IdempotencyKey, second.IdempotencyKey)
	}
	if first.IdempotencyKey == next.IdempotencyKey {
		t.Fatalf("expected new key in the next hour")
	}

	decoded, err := PolicyFromMessage(first)
	if err != nil {
		t.Fatalf("decode policy: %v", err)
	}
	if decoded != policy {
		t.Fatalf("expected %+v, got %+v", policy, decoded)
	}
}

func TestPolicyFromMessage_AcceptsJSONNumbers(t *testing.T) {
	policy, err := PolicyFromMessage(&job.ExecutionMessage{
		JobID:      JobIDAuditPrune,
		Parameters: map[string]any{ParamTTLSeconds: float64(3600), ParamRowCap: "10"},
	})
	if err != nil {
		t.Fatalf("decode policy: %v", err)
	}
	if policy.TTL != time.Hour || policy.RowCap != 10 {
		t.Fatalf("unexpected policy %+v", policy)
	}
	if _, err := PolicyFromMessage(&job.ExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected unexpected job id error")
	}
	if _, err := PolicyFromMessage(&job.ExecutionMessage{
		JobID:      JobIDAuditPrune,
		Parameters: map[string]any{ParamRowCap: []int{1}},
	}); err == nil {
		t.Fatalf("expected unsupported parameter type error")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second, DeadLetterOnMax: true}

	first := policy.NormalizeAttempt(queue.NackOptions{Delay: 30 * time.Second, Requeue: true, Reason: " transient "}, 1)
	if first.Delay != 10*time.Second || !first.Requeue || first.Reason != "transient" {
		t.Fatalf("unexpected first nack %+v", first)
	}

	last := policy.NormalizeAttempt(queue.NackOptions{Delay: time.Second, Requeue: true}, 3)
	if last.Requeue || !last.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", last)
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for attempt, expected := range want {
		if got := policy.Backoff(attempt); got != expected {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, expected, got)
		}
	}
}

func TestPruneWorker_AcksOnSuccess(t *testing.T) {
	delivery := &stubQueueDelivery{msg: NewPruneJobMessage(core.RetentionPolicy{TTL: time.Hour}, time.Now())}
	hook := &capturingHook{}
	var got core.RetentionPolicy
	w, err := NewPruneWorker(&stubQueueDequeuer{delivery: delivery}, func(_ context.Context, policy core.RetentionPolicy) (int, error) {
		got = policy
		return 4, nil
	}, WithHook(hook))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !delivery.acked || delivery.nacked {
		t.Fatalf("expected ack only")
	}
	if got.TTL != time.Hour {
		t.Fatalf("unexpected policy %+v", got)
	}
	if len(hook.phases) != 2 || hook.phases[0] != "start" || hook.phases[1] != "success" {
		t.Fatalf("unexpected hook phases %v", hook.phases)
	}
}

func TestPruneWorker_RetriesThenDeadLetters(t *testing.T) {
	delivery := &stubQueueDelivery{msg: NewPruneJobMessage(core.RetentionPolicy{RowCap: 10}, time.Now())}
	hook := &capturingHook{}
	w, err := NewPruneWorker(&stubQueueDequeuer{delivery: delivery}, func(context.Context, core.RetentionPolicy) (int, error) {
		return 0, errors.New("database is locked")
	}, WithHook(hook), WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, DeadLetterOnMax: true}))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	if err := w.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected prune failure")
	}
	if !delivery.nackOpts.Requeue || delivery.nackOpts.Delay != time.Second {
		t.Fatalf("expected requeue with backoff, got %+v", delivery.nackOpts)
	}
	if hook.phases[len(hook.phases)-1] != "retry" || hook.last.Attempt != 1 {
		t.Fatalf("expected retry event for attempt 1, got %v %+v", hook.phases, hook.last)
	}

	if err := w.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected prune failure")
	}
	if delivery.nackOpts.Requeue || !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on second attempt, got %+v", delivery.nackOpts)
	}
	if hook.phases[len(hook.phases)-1] != "failure" || hook.last.Err == nil {
		t.Fatalf("expected failure event, got %v", hook.phases)
	}
}

func TestPruneWorker_RecoversPanics(t *testing.T) {
	delivery := &stubQueueDelivery{msg: NewPruneJobMessage(core.RetentionPolicy{RowCap: 1}, time.Now())}
	w, err := NewPruneWorker(&stubQueueDequeuer{delivery: delivery}, func(context.Context, core.RetentionPolicy) (int, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := w.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected failure from panic")
	}
	if !delivery.nacked {
		t.Fatalf("expected nack after panic")
	}
}

func TestNewPruneWorker_RequiresCollaborators(t *testing.T) {
	if _, err := NewPruneWorker(nil, func(context.Context, core.RetentionPolicy) (int, error) { return 0, nil }); err == nil {
		t.Fatalf("expected dequeuer error")
	}
	if _, err := NewPruneWorker(NewMemoryQueue(1), nil); err == nil {
		t.Fatalf("expected prune func error")
	}
}

func TestMemoryQueue_DeduplicatesAndDeadLetters(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	msg := NewPruneJobMessage(core.RetentionPolicy{RowCap: 1}, time.Now())

	if err := q.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, NewPruneJobMessage(core.RetentionPolicy{RowCap: 1}, time.Now())); err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if len(q.ready) != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d queued", len(q.ready))
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := delivery.Nack(ctx, queue.NackOptions{Requeue: true}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	redelivered, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue requeued: %v", err)
	}
	if err := redelivered.Nack(ctx, queue.NackOptions{DeadLetter: true}); err != nil {
		t.Fatalf("dead letter: %v", err)
	}
	if len(q.DeadLetters()) != 1 {
		t.Fatalf("expected one dead letter")
	}

	if err := q.Enqueue(ctx, msg); err != nil || len(q.ready) != 1 {
		t.Fatalf("expected key released after dead letter")
	}
}

func TestMemoryQueue_DequeueHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryQueue(1).Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestPruneWorker_RunDrainsQueueUntilCancelled(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan core.RetentionPolicy, 1)
	w, err := NewPruneWorker(q, func(_ context.Context, policy core.RetentionPolicy) (int, error) {
		runs <- policy
		return 1, nil
	}, WithHook(LoggingHook{}))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := q.Enqueue(ctx, NewPruneJobMessage(core.RetentionPolicy{RowCap: 3}, time.Now())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case policy := <-runs:
		if policy.RowCap != 3 {
			t.Fatalf("unexpected policy %+v", policy)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for prune")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

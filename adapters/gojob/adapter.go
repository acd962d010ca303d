package gojob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
)

const (
	JobIDAuditPrune = "reveal.audit.prune"

	ParamTTLSeconds = "ttl_seconds"
	ParamRowCap     = "row_cap"

	dedupDrop = "drop"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// Backoff doubles BaseDelay per attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// NewPruneJobMessage builds the retention job for the hour containing now.
// The idempotency key is stable within that hour so a queue that honours
// it runs at most one prune per hour.
func NewPruneJobMessage(policy core.RetentionPolicy, now time.Time) *job.ExecutionMessage {
	hour := now.UTC().Truncate(time.Hour)
	return &job.ExecutionMessage{
		JobID:      JobIDAuditPrune,
		ScriptPath: JobIDAuditPrune,
		Parameters: map[string]any{
			ParamTTLSeconds: int64(policy.TTL / time.Second),
			ParamRowCap:     policy.RowCap,
		},
		IdempotencyKey: JobIDAuditPrune + ":" + hour.Format("2006010215"),
		DedupPolicy:    job.DeduplicationPolicy(dedupDrop),
	}
}

// PolicyFromMessage reads the retention policy back from a prune job.
func PolicyFromMessage(msg *job.ExecutionMessage) (core.RetentionPolicy, error) {
	if msg == nil {
		return core.RetentionPolicy{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDAuditPrune {
		return core.RetentionPolicy{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	ttl, err := intParam(msg.Parameters, ParamTTLSeconds)
	if err != nil {
		return core.RetentionPolicy{}, err
	}
	rowCap, err := intParam(msg.Parameters, ParamRowCap)
	if err != nil {
		return core.RetentionPolicy{}, err
	}
	return core.RetentionPolicy{TTL: time.Duration(ttl) * time.Second, RowCap: int(rowCap)}, nil
}

func intParam(params map[string]any, key string) (int64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch value := raw.(type) {
	case int:
		return int64(value), nil
	case int64:
		return value, nil
	case float64:
		return int64(value), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("gojob: parameter %s: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("gojob: parameter %s has unsupported type %T", key, raw)
	}
}

// PruneFunc runs one retention pass and returns the deleted row count.
type PruneFunc func(ctx context.Context, policy core.RetentionPolicy) (int, error)

// PruneWorker consumes prune jobs from a queue. Successful runs are acked;
// failures are nacked within the retry policy bounds.
type PruneWorker struct {
	dequeuer queue.Dequeuer
	prune    PruneFunc
	policy   RetryPolicy
	hook     worker.Hook
	logger   core.Logger
	now      func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

type WorkerOption func(*PruneWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *PruneWorker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *PruneWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *PruneWorker) {
		w.logger = logger
	}
}

func NewPruneWorker(dequeuer queue.Dequeuer, prune PruneFunc, opts ...WorkerOption) (*PruneWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if prune == nil {
		return nil, fmt.Errorf("gojob: prune func is required")
	}
	w := &PruneWorker{
		dequeuer: dequeuer,
		prune:    prune,
		policy:   RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute, DeadLetterOnMax: true},
		now:      func() time.Time { return time.Now().UTC() },
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = glog.Ensure(w.logger)
	return w, nil
}

// Run processes deliveries until ctx is cancelled.
func (w *PruneWorker) Run(ctx context.Context) error {
	for {
		err := w.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, errPruneFailed) {
			return err
		}
	}
}

var errPruneFailed = errors.New("gojob: prune job failed")

// RunOnce dequeues and handles a single delivery.
func (w *PruneWorker) RunOnce(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	key := deliveryKey(msg)
	attempt := w.nextAttempt(key)
	startedAt := w.now()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt}
	w.emit(ctx, "start", event)

	deleted, runErr := w.handle(ctx, msg)
	event.Duration = w.now().Sub(startedAt)
	if runErr == nil {
		w.forget(key)
		w.emit(ctx, "success", event)
		w.logger.WithContext(ctx).Info("audit prune completed", "deleted", deleted, "attempt", attempt)
		return delivery.Ack(ctx)
	}

	event.Err = runErr
	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Delay:   w.policy.Backoff(attempt),
		Requeue: true,
		Reason:  runErr.Error(),
	}, attempt)
	event.Delay = opts.Delay
	if opts.Requeue {
		w.emit(ctx, "retry", event)
	} else {
		w.forget(key)
		w.emit(ctx, "failure", event)
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", errPruneFailed, runErr)
}

func (w *PruneWorker) handle(ctx context.Context, msg *job.ExecutionMessage) (deleted int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("gojob: prune panicked: %v", rec)
		}
	}()
	policy, err := PolicyFromMessage(msg)
	if err != nil {
		return 0, err
	}
	return w.prune(ctx, policy)
}

func (w *PruneWorker) emit(ctx context.Context, phase string, event worker.Event) {
	if w.hook == nil {
		return
	}
	switch phase {
	case "start":
		w.hook.OnStart(ctx, event)
	case "success":
		w.hook.OnSuccess(ctx, event)
	case "retry":
		w.hook.OnRetry(ctx, event)
	case "failure":
		w.hook.OnFailure(ctx, event)
	}
}

func (w *PruneWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *PruneWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func deliveryKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// LoggingHook reports worker lifecycle events through a glog logger.
type LoggingHook struct {
	Logger core.Logger
}

func (h LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.logger(ctx).Debug("job started", eventFields(event)...)
}

func (h LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.logger(ctx).Info("job succeeded", eventFields(event)...)
}

func (h LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.logger(ctx).Error("job failed", eventFields(event)...)
}

func (h LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.logger(ctx).Warn("job scheduled for retry", eventFields(event)...)
}

func (h LoggingHook) logger(ctx context.Context) core.Logger {
	return glog.Ensure(h.Logger).WithContext(ctx)
}

func eventFields(event worker.Event) []any {
	fields := []any{
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message != nil {
		fields = append(fields, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

var _ worker.Hook = LoggingHook{}

package core

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Observer logs and meters gateway operations. Every field map is redacted
// before it reaches the logger.
type Observer struct {
	Logger  Logger
	Metrics MetricsRecorder
	Prefix  string
}

func NewObserver(prefix string, logger Logger, metrics MetricsRecorder) Observer {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return Observer{
		Logger:  glog.Ensure(logger),
		Metrics: metrics,
		Prefix:  strings.TrimSpace(prefix),
	}
}

// Observe records one finished operation. An "outcome" entry in fields is
// promoted to a metric tag.
func (o Observer) Observe(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	operation = normalizeOperation(operation)
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	elapsed := time.Since(startedAt).Milliseconds()

	tags := map[string]string{"operation": operation, "status": status}
	if outcome, ok := fields["outcome"]; ok {
		if value := strings.TrimSpace(stringify(outcome)); value != "" {
			tags["outcome"] = value
		}
	}
	recordOperation(ctx, o.Metrics, metricName(o.Prefix, operation), elapsed, tags)

	entry := cloneFields(fields)
	entry["event_type"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry["request_id"] = requestID
	}
	if err != nil {
		entry["error"] = err.Error()
		o.Log(ctx, "error", operation+" failed", entry)
		return
	}
	o.Log(ctx, "info", operation+" succeeded", entry)
}

// Log writes a redacted entry at level. Loggers that accept fields get them
// attached as well as passed as key/value args.
func (o Observer) Log(ctx context.Context, level string, message string, fields map[string]any) {
	if o.Logger == nil {
		return
	}
	logger := o.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	redacted := RedactSensitiveMap(fields)
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(redacted))
	}
	args := flattenFields(redacted)

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

func flattenFields(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case AttemptOutcome:
		return string(typed)
	}
	return ""
}

func normalizeOperation(operation string) string {
	operation = strings.ToLower(strings.TrimSpace(operation))
	operation = strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
	if operation == "" {
		return "unknown"
	}
	return operation
}

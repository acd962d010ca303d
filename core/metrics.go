package core

import (
	"context"
	"maps"
	"strings"
)

const (
	metricSuffixTotal    = ".total"
	metricSuffixDuration = ".duration_ms"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// metricName joins prefix and operation with a dot; an empty prefix leaves
// the operation as is.
func metricName(prefix string, operation string) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		return operation
	}
	return prefix + "." + operation
}

// recordOperation emits the call counter and the duration histogram. Each
// recorder call receives its own tag map.
func recordOperation(ctx context.Context, recorder MetricsRecorder, name string, elapsedMS int64, tags map[string]string) {
	if recorder == nil {
		return
	}
	recorder.IncCounter(ctx, name+metricSuffixTotal, 1, maps.Clone(tags))
	recorder.ObserveHistogram(ctx, name+metricSuffixDuration, float64(elapsedMS), maps.Clone(tags))
}

var _ MetricsRecorder = NopMetricsRecorder{}

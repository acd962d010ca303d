package gateway

import (
	"time"

	"github.com/goliatone/go-reveal/core"
)

type builder struct {
	configSource      func() core.PayrailsConfig
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metricsRecorder   core.MetricsRecorder
	transport         core.TransportAdapter
	idempotencyKeyGen core.IdempotencyKeyGenerator
	attemptIDGen      func() string
	recorder          core.AttemptRecorder
	now               func() time.Time
}

type Option func(*builder)

func WithLogger(logger core.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *builder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *builder) {
		b.metricsRecorder = recorder
	}
}

// WithTransport replaces the REST adapter used for both upstream calls.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(b *builder) {
		b.transport = adapter
	}
}

func WithIdempotencyKeyGenerator(generator core.IdempotencyKeyGenerator) Option {
	return func(b *builder) {
		b.idempotencyKeyGen = generator
	}
}

func WithAttemptIDGenerator(generator func() string) Option {
	return func(b *builder) {
		b.attemptIDGen = generator
	}
}

// WithAttemptRecorder enables the audit trail. Record failures are logged
// and never change the result of an invocation.
func WithAttemptRecorder(recorder core.AttemptRecorder) Option {
	return func(b *builder) {
		b.recorder = recorder
	}
}

// WithConfigSource makes the gateway read its upstream configuration on
// every invocation instead of using the static value passed to New.
func WithConfigSource(source func() core.PayrailsConfig) Option {
	return func(b *builder) {
		b.configSource = source
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *builder) {
		b.now = now
	}
}

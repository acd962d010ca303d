package httpapi

import (
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/ratelimit"
)

const defaultMaxBodyBytes int64 = 64 << 10

type builder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	attempts       core.AttemptReader
	limiter        *ratelimit.Limiter
	maxBodyBytes   int64
	requestIDGen   func() string
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

// WithAttemptReader mounts the audit trail routes.
func WithAttemptReader(reader core.AttemptReader) Option {
	return func(b *builder) {
		b.attempts = reader
	}
}

// WithRateLimiter throttles POST /api/init per client address.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(b *builder) {
		b.limiter = limiter
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(b *builder) {
		if limit > 0 {
			b.maxBodyBytes = limit
		}
	}
}

func WithRequestIDGenerator(generator func() string) Option {
	return func(b *builder) {
		if generator != nil {
			b.requestIDGen = generator
		}
	}
}

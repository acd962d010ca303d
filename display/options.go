package display

import "github.com/goliatone/go-reveal/core"

type builder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	options        core.DisplayOptions
	mounts         []core.FieldMountSpec
	listeners      []StateListener
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

func WithDisplayOptions(options core.DisplayOptions) Option {
	return func(b *builder) {
		b.options = options
	}
}

// WithFieldMounts overrides the mount plan. Mounts run in slice order.
func WithFieldMounts(mounts []core.FieldMountSpec) Option {
	return func(b *builder) {
		b.mounts = append([]core.FieldMountSpec(nil), mounts...)
	}
}

func WithStateListener(listener StateListener) Option {
	return func(b *builder) {
		if listener != nil {
			b.listeners = append(b.listeners, listener)
		}
	}
}

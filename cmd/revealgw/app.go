package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-reveal/adapters/gocommand"
	"github.com/goliatone/go-reveal/adapters/gojob"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/events"
	"github.com/goliatone/go-reveal/gateway"
	"github.com/goliatone/go-reveal/ratelimit"
	sqlstore "github.com/goliatone/go-reveal/store/sql"
)

const (
	pruneInterval    = time.Hour
	attemptCacheTTL  = 5 * time.Minute
	pruneQueueBuffer = 4
)

// app holds the wired gateway process. Optional members stay nil when the
// matching config section is disabled.
type app struct {
	cfg     core.Config
	logger  core.Logger
	gateway *gateway.Gateway
	limiter *ratelimit.Limiter
	reader  core.AttemptReader
	pruner  core.AttemptPruner

	queue         *gojob.MemoryQueue
	worker        *gojob.PruneWorker
	subscriptions gocommand.Subscriptions
	closers       []io.Closer
}

func newApp(ctx context.Context, cfg core.Config, provider core.LoggerProvider) (_ *app, err error) {
	a := &app{cfg: cfg, logger: provider.GetLogger("reveal.app")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var recorders core.MultiAttemptRecorder
	if cfg.Store.Enabled() {
		client, err := sqlstore.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		a.closers = append(a.closers, closerFunc(client.Close))
		store, reader, err := newAttemptStore(client)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, store)
		a.reader = reader
		a.pruner = reader
	}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		a.closers = append(a.closers, publisher)
		recorders = append(recorders, publisher)
	}

	opts := []gateway.Option{gateway.WithLoggerProvider(provider)}
	if len(recorders) > 0 {
		opts = append(opts, gateway.WithAttemptRecorder(recorders))
	}
	a.gateway = gateway.New(cfg.Payrails, opts...)

	if a.limiter, err = newLimiter(cfg.RateLimit, provider.GetLogger("reveal.ratelimit")); err != nil {
		return nil, err
	}
	if a.limiter != nil {
		if closer, ok := a.limiter.Store.(io.Closer); ok {
			a.closers = append(a.closers, closer)
		}
	}

	registry := gocommand.NewRegistryAdapter(nil)
	a.subscriptions, err = gocommand.RegisterReveal(registry, gocommand.Handlers{
		Initializer: a.gateway,
		Pruner:      a.pruner,
		Reader:      a.reader,
	})
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	if err := registry.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize command registry: %w", err)
	}

	if a.pruner != nil {
		a.queue = gojob.NewMemoryQueue(pruneQueueBuffer)
		workerLogger := provider.GetLogger("reveal.audit.prune")
		a.worker, err = gojob.NewPruneWorker(a.queue, gocommand.PruneAttempts,
			gojob.WithWorkerLogger(workerLogger),
			gojob.WithHook(gojob.LoggingHook{Logger: workerLogger}),
		)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newAttemptStore(client *persistence.Client) (*sqlstore.AttemptStore, *sqlstore.CachedAttemptReader, error) {
	store, err := sqlstore.NewAttemptStore(client.DB())
	if err != nil {
		return nil, nil, err
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = attemptCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("attempt cache: %w", err)
	}
	reader, err := sqlstore.NewCachedAttemptReader(store, cacheService)
	if err != nil {
		return nil, nil, err
	}
	return store, reader, nil
}

func newLimiter(cfg core.RateLimitConfig, logger core.Logger) (*ratelimit.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := ratelimit.Connect(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store = redisStoreCloser{RedisStore: ratelimit.NewRedisStore(client), closer: client}
	}
	limiter := ratelimit.NewLimiter(store, cfg.Requests, cfg.Window())
	limiter.Logger = logger
	return limiter, nil
}

// StartRetention runs the prune worker and enqueues a prune job now and on
// every interval. Jobs in the same hour share an idempotency key.
func (a *app) StartRetention(ctx context.Context) {
	if a.worker == nil {
		return
	}
	policy := a.cfg.Audit.RetentionPolicy()
	if policy.TTL <= 0 && policy.RowCap <= 0 {
		a.logger.Info("audit retention disabled")
		return
	}

	go func() {
		if err := a.worker.Run(ctx); err != nil {
			a.logger.Error("audit prune worker stopped", "error", err)
		}
	}()
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			if err := a.queue.Enqueue(ctx, gojob.NewPruneJobMessage(policy, time.Now().UTC())); err != nil && ctx.Err() == nil {
				a.logger.Warn("enqueue audit prune failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (a *app) Close() {
	a.subscriptions.Unsubscribe()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("close resources", "error", err)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type redisStoreCloser struct {
	*ratelimit.RedisStore
	closer io.Closer
}

func (s redisStoreCloser) Close() error { return s.closer.Close() }

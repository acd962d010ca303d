package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-reveal/adapters/gologger"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/httpapi"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	logLevel := flag.String("log-level", envOr("REVEAL_LOG_LEVEL", "info"), "trace, debug, info, warn or error")
	flag.Parse()

	root := gologger.NewSlogLogger(gologger.NewJSONHandler(os.Stderr, gologger.ParseLevel(*logLevel)))
	provider := gologger.NewSlogProvider(root)
	logger := provider.GetLogger("reveal.main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, provider); err != nil {
		logger.Fatal("gateway stopped", "error", err)
	}
}

func run(ctx context.Context, configPath string, provider core.LoggerProvider) error {
	logger := provider.GetLogger("reveal.main")

	cfg, err := loadConfig(ctx, configPath, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if missing := cfg.Payrails.MissingCredentials(); len(missing) > 0 {
		logger.Warn("upstream credentials missing, reveal calls will fail until configured", "missing", missing)
	}

	gw, err := newApp(ctx, cfg, provider)
	if err != nil {
		return err
	}
	defer gw.Close()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	gw.StartRetention(workerCtx)

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(gw.gateway,
			httpapi.WithLoggerProvider(provider),
			httpapi.WithAttemptReader(gw.reader),
			httpapi.WithRateLimiter(gw.limiter),
			httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTP.Addr, "service", cfg.ServiceName)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadConfig layers defaults, the optional YAML file and the environment.
func loadConfig(ctx context.Context, path string, lookup func(string) (string, bool)) (core.Config, error) {
	loader := core.ChainLoader{
		core.YAMLFileLoader{Path: path},
		core.EnvLoader{Lookup: lookup},
	}
	return core.LoadConfig(ctx, core.NewCfgxConfigProvider(loader), core.GoOptionsResolver{}, core.Config{})
}

func envOr(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

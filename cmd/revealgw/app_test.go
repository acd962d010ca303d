package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/ratelimit"
	sqlstore "github.com/goliatone/go-reveal/store/sql"
)

type nopProvider struct{}

func (nopProvider) GetLogger(string) glog.Logger { return glog.Nop() }

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reveal.yaml")
	content := "service_name: reveal-test\nhttp:\n  addr: \":9090\"\npayrails:\n  client_id: file-client\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := map[string]string{
		core.EnvPayrailsClientID:   "env-client",
		"REVEAL_RATELIMIT_ENABLED": "true",
	}
	lookup := func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}

	cfg, err := loadConfig(context.Background(), path, lookup)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "reveal-test" || cfg.HTTP.Addr != ":9090" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.Payrails.ClientID != "env-client" {
		t.Fatalf("expected env override, got %q", cfg.Payrails.ClientID)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Requests != 30 {
		t.Fatalf("expected rate limit defaults with env toggle, got %+v", cfg.RateLimit)
	}
}

func TestNewLimiter(t *testing.T) {
	limiter, err := newLimiter(core.RateLimitConfig{}, glog.Nop())
	if err != nil || limiter != nil {
		t.Fatalf("expected disabled limiter, got %v %v", limiter, err)
	}

	limiter, err = newLimiter(core.RateLimitConfig{Enabled: true, Requests: 5, WindowSeconds: 10}, glog.Nop())
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if _, ok := limiter.Store.(*ratelimit.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", limiter.Store)
	}
	if limiter.Requests != 5 || limiter.Window != 10*time.Second {
		t.Fatalf("unexpected limiter %+v", limiter)
	}

	limiter, err = newLimiter(core.RateLimitConfig{Enabled: true, Requests: 5, WindowSeconds: 10, RedisURL: "localhost:6379"}, glog.Nop())
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	closer, ok := limiter.Store.(redisStoreCloser)
	if !ok {
		t.Fatalf("expected redis store, got %T", limiter.Store)
	}
	_ = closer.Close()
}

func TestNewApp_WiresSQLiteAuditTrail(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Store = core.StoreConfig{
		Driver: core.StoreDriverSQLite,
		DSN:    fmt.Sprintf("file:revealgw-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	}

	a, err := newApp(context.Background(), cfg, nopProvider{})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	if a.reader == nil || a.pruner == nil || a.worker == nil || a.queue == nil {
		t.Fatalf("expected audit trail wiring, got %+v", a)
	}
	if _, ok := a.pruner.(*sqlstore.CachedAttemptReader); !ok {
		t.Fatalf("expected prunes to go through the cached reader, got %T", a.pruner)
	}
	if a.limiter != nil {
		t.Fatalf("expected limiter disabled by default")
	}
	if len(a.subscriptions) != 4 {
		t.Fatalf("expected four bus subscriptions, got %d", len(a.subscriptions))
	}

	page, err := a.reader.List(context.Background(), core.AttemptFilter{})
	if err != nil || page.Total != 0 {
		t.Fatalf("expected empty audit trail, got %+v %v", page, err)
	}
}

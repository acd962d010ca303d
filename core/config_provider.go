package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver layers defaults < loaded config < runtime overrides.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig resolves the effective configuration from loader output and
// runtime overrides on top of DefaultConfig.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	payrails := map[string]any{}
	putString(payrails, "base_url", cfg.Payrails.BaseURL, includeZero)
	putString(payrails, "client_id", cfg.Payrails.ClientID, includeZero)
	putString(payrails, "client_secret", cfg.Payrails.ClientSecret, includeZero)
	putString(payrails, "audit_data", cfg.Payrails.AuditData, includeZero)
	putInt(payrails, "timeout_seconds", cfg.Payrails.TimeoutSeconds, includeZero)
	putSection(layer, "payrails", payrails)

	httpSection := map[string]any{}
	putString(httpSection, "addr", cfg.HTTP.Addr, includeZero)
	if includeZero || cfg.HTTP.MaxBodyBytes != 0 {
		httpSection["max_body_bytes"] = cfg.HTTP.MaxBodyBytes
	}
	putSection(layer, "http", httpSection)

	store := map[string]any{}
	putString(store, "driver", cfg.Store.Driver, includeZero)
	putString(store, "dsn", cfg.Store.DSN, includeZero)
	putBool(store, "debug", cfg.Store.Debug, includeZero)
	putSection(layer, "store", store)

	audit := map[string]any{}
	putInt(audit, "retention_hours", cfg.Audit.RetentionHours, includeZero)
	putInt(audit, "row_cap", cfg.Audit.RowCap, includeZero)
	if includeZero || len(cfg.Audit.KafkaBrokers) > 0 {
		audit["kafka_brokers"] = append([]string(nil), cfg.Audit.KafkaBrokers...)
	}
	putString(audit, "kafka_topic", cfg.Audit.KafkaTopic, includeZero)
	putSection(layer, "audit", audit)

	ratelimit := map[string]any{}
	putBool(ratelimit, "enabled", cfg.RateLimit.Enabled, includeZero)
	putInt(ratelimit, "requests", cfg.RateLimit.Requests, includeZero)
	putInt(ratelimit, "window_seconds", cfg.RateLimit.WindowSeconds, includeZero)
	putString(ratelimit, "redis_url", cfg.RateLimit.RedisURL, includeZero)
	putSection(layer, "ratelimit", ratelimit)

	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putInt(target map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putBool(target map[string]any, key string, value bool, includeZero bool) {
	if includeZero || value {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}

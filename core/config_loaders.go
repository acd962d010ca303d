package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvPayrailsBaseURL      = "PAYRAILS_BASE_URL"
	EnvPayrailsClientID     = "PAYRAILS_CLIENT_ID"
	EnvPayrailsClientSecret = "PAYRAILS_CLIENT_SECRET"
)

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// StaticRawConfigLoader returns a copy of Values.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return deepCopyMap(l.Values), nil
}

// YAMLFileLoader reads a YAML document. A missing file yields an empty map.
type YAMLFileLoader struct {
	Path string
}

func (l YAMLFileLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config file: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("core: parse config file: %w", err)
	}
	return out, nil
}

type envBinding struct {
	name string
	path []string
	kind string
}

var envBindings = []envBinding{
	{name: EnvPayrailsBaseURL, path: []string{"payrails", "base_url"}},
	{name: EnvPayrailsClientID, path: []string{"payrails", "client_id"}},
	{name: EnvPayrailsClientSecret, path: []string{"payrails", "client_secret"}},
	{name: "PAYRAILS_AUDIT_DATA", path: []string{"payrails", "audit_data"}},
	{name: "PAYRAILS_TIMEOUT_SECONDS", path: []string{"payrails", "timeout_seconds"}, kind: "int"},
	{name: "REVEAL_SERVICE_NAME", path: []string{"service_name"}},
	{name: "REVEAL_HTTP_ADDR", path: []string{"http", "addr"}},
	{name: "REVEAL_HTTP_MAX_BODY_BYTES", path: []string{"http", "max_body_bytes"}, kind: "int"},
	{name: "REVEAL_STORE_DRIVER", path: []string{"store", "driver"}},
	{name: "REVEAL_STORE_DSN", path: []string{"store", "dsn"}},
	{name: "REVEAL_STORE_DEBUG", path: []string{"store", "debug"}, kind: "bool"},
	{name: "REVEAL_AUDIT_RETENTION_HOURS", path: []string{"audit", "retention_hours"}, kind: "int"},
	{name: "REVEAL_AUDIT_ROW_CAP", path: []string{"audit", "row_cap"}, kind: "int"},
	{name: "REVEAL_KAFKA_BROKERS", path: []string{"audit", "kafka_brokers"}, kind: "csv"},
	{name: "REVEAL_KAFKA_TOPIC", path: []string{"audit", "kafka_topic"}},
	{name: "REVEAL_RATELIMIT_ENABLED", path: []string{"ratelimit", "enabled"}, kind: "bool"},
	{name: "REVEAL_RATELIMIT_REQUESTS", path: []string{"ratelimit", "requests"}, kind: "int"},
	{name: "REVEAL_RATELIMIT_WINDOW_SECONDS", path: []string{"ratelimit", "window_seconds"}, kind: "int"},
	{name: "REVEAL_REDIS_URL", path: []string{"ratelimit", "redis_url"}},
}

// EnvLoader maps PAYRAILS_* and REVEAL_* variables into the config tree.
// Unset or blank variables are skipped.
type EnvLoader struct {
	Lookup func(string) (string, bool)
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := map[string]any{}
	for _, binding := range envBindings {
		raw, ok := lookup(binding.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := parseEnvValue(binding, strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		setPath(out, binding.path, value)
	}
	return out, nil
}

func parseEnvValue(binding envBinding, raw string) (any, error) {
	switch binding.kind {
	case "int":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be an integer: %w", binding.name, err)
		}
		return n, nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be a boolean: %w", binding.name, err)
		}
		return b, nil
	case "csv":
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		return values, nil
	default:
		return raw, nil
	}
}

// ChainLoader deep merges the output of each loader; later loaders win.
type ChainLoader []RawConfigLoader

func (c ChainLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	merged := map[string]any{}
	for _, loader := range c {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeMaps(merged, raw)
	}
	return merged, nil
}

func setPath(target map[string]any, path []string, value any) {
	current := target
	for i, key := range path {
		if i == len(path)-1 {
			current[key] = value
			return
		}
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
}

func mergeMaps(dst map[string]any, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[key] = deepCopyMap(srcMap)
			continue
		}
		dst[key] = value
	}
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = deepCopyMap(nested)
			continue
		}
		out[key] = value
	}
	return out
}

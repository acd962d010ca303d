package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoader_MapsPayrailsVariables(t *testing.T) {
	env := map[string]string{
		EnvPayrailsBaseURL:         "https://sandbox.payrails.test",
		EnvPayrailsClientID:        "client_1",
		EnvPayrailsClientSecret:    "secret_1",
		"REVEAL_KAFKA_BROKERS":     "k1:9092, k2:9092",
		"REVEAL_RATELIMIT_ENABLED": "true",
		"REVEAL_STORE_DRIVER":      "  ",
	}
	loader := EnvLoader{Lookup: func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	payrails, ok := raw["payrails"].(map[string]any)
	if !ok {
		t.Fatalf("expected payrails section, got %#v", raw)
	}
	if payrails["client_id"] != "client_1" || payrails["client_secret"] != "secret_1" {
		t.Fatalf("unexpected payrails section: %#v", payrails)
	}
	audit := raw["audit"].(map[string]any)
	brokers := audit["kafka_brokers"].([]any)
	if len(brokers) != 2 || brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %#v", brokers)
	}
	if _, exists := raw["store"]; exists {
		t.Fatalf("expected blank variables to be skipped")
	}
}

func TestEnvLoader_RejectsInvalidNumbers(t *testing.T) {
	loader := EnvLoader{Lookup: func(key string) (string, bool) {
		if key == "REVEAL_RATELIMIT_REQUESTS" {
			return "many", true
		}
		return "", false
	}}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected integer parse error")
	}
}

func TestYAMLFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reveal.yaml")
	content := "service_name: reveal-test\npayrails:\n  base_url: https://yaml.payrails.test\nhttp:\n  addr: \":9090\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	raw, err := YAMLFileLoader{Path: path}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if raw["service_name"] != "reveal-test" {
		t.Fatalf("unexpected service name: %#v", raw["service_name"])
	}

	missing, err := YAMLFileLoader{Path: filepath.Join(dir, "missing.yaml")}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected empty map for missing file")
	}
}

func TestChainLoader_LaterLoadersWin(t *testing.T) {
	chain := ChainLoader{
		StaticRawConfigLoader{Values: map[string]any{
			"payrails": map[string]any{"base_url": "https://file.test", "client_id": "from_file"},
		}},
		StaticRawConfigLoader{Values: map[string]any{
			"payrails": map[string]any{"client_id": "from_env"},
		}},
	}
	raw, err := chain.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	payrails := raw["payrails"].(map[string]any)
	if payrails["client_id"] != "from_env" {
		t.Fatalf("expected env override, got %#v", payrails["client_id"])
	}
	if payrails["base_url"] != "https://file.test" {
		t.Fatalf("expected file value to survive merge, got %#v", payrails["base_url"])
	}
}

func TestLoadConfig_LayersDefaultsConfigAndRuntime(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"payrails": map[string]any{"client_id": "loaded_client"},
		"http":     map[string]any{"addr": ":7000"},
	}})
	cfg, err := LoadConfig(context.Background(), provider, GoOptionsResolver{}, Config{
		HTTP: HTTPConfig{Addr: ":7100"},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Payrails.ClientID != "loaded_client" {
		t.Fatalf("expected loaded client id, got %q", cfg.Payrails.ClientID)
	}
	if cfg.HTTP.Addr != ":7100" {
		t.Fatalf("expected runtime override, got %q", cfg.HTTP.Addr)
	}
	if cfg.Payrails.BaseURL != DefaultPayrailsBaseURL {
		t.Fatalf("expected default base url, got %q", cfg.Payrails.BaseURL)
	}
	if cfg.ServiceName != DefaultServiceName {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	cfg.Store.Driver = "mysql"
	cfg.Store.DSN = "dsn"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
	cfg = DefaultConfig()
	cfg.Store.Driver = StoreDriverSQLite
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing dsn to fail")
	}
}

func TestPayrailsConfigHelpers(t *testing.T) {
	cfg := PayrailsConfig{BaseURL: "https://api.test/ "}
	if got := cfg.ResolvedBaseURL(); got != "https://api.test" {
		t.Fatalf("expected trimmed base url, got %q", got)
	}
	if got := (PayrailsConfig{}).ResolvedBaseURL(); got != DefaultPayrailsBaseURL {
		t.Fatalf("expected default base url, got %q", got)
	}
	missing := cfg.MissingCredentials()
	if len(missing) != 2 || missing[0] != EnvPayrailsClientID || missing[1] != EnvPayrailsClientSecret {
		t.Fatalf("unexpected missing credentials: %#v", missing)
	}
}

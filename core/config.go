package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPayrailsBaseURL = "https://api.payrails.com"
	DefaultServiceName     = "reveal-gateway"
	DefaultHTTPAddr        = ":8080"
	DefaultKafkaTopic      = "reveal.attempts"

	StoreDriverSQLite   = "sqlite3"
	StoreDriverPostgres = "postgres"
)

type PayrailsConfig struct {
	BaseURL        string `koanf:"base_url" mapstructure:"base_url"`
	ClientID       string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret   string `koanf:"client_secret" mapstructure:"client_secret"`
	AuditData      string `koanf:"audit_data" mapstructure:"audit_data"`
	TimeoutSeconds int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// MissingCredentials lists the environment names of absent credentials.
func (c PayrailsConfig) MissingCredentials() []string {
	missing := []string{}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, EnvPayrailsClientID)
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, EnvPayrailsClientSecret)
	}
	return missing
}

func (c PayrailsConfig) ResolvedBaseURL() string {
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		return DefaultPayrailsBaseURL
	}
	return baseURL
}

func (c PayrailsConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type HTTPConfig struct {
	Addr         string `koanf:"addr" mapstructure:"addr"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

func (c StoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Driver) != ""
}

type AuditConfig struct {
	RetentionHours int      `koanf:"retention_hours" mapstructure:"retention_hours"`
	RowCap         int      `koanf:"row_cap" mapstructure:"row_cap"`
	KafkaBrokers   []string `koanf:"kafka_brokers" mapstructure:"kafka_brokers"`
	KafkaTopic     string   `koanf:"kafka_topic" mapstructure:"kafka_topic"`
}

func (c AuditConfig) RetentionPolicy() RetentionPolicy {
	policy := RetentionPolicy{RowCap: c.RowCap}
	if c.RetentionHours > 0 {
		policy.TTL = time.Duration(c.RetentionHours) * time.Hour
	}
	return policy
}

type RateLimitConfig struct {
	Enabled       bool   `koanf:"enabled" mapstructure:"enabled"`
	Requests      int    `koanf:"requests" mapstructure:"requests"`
	WindowSeconds int    `koanf:"window_seconds" mapstructure:"window_seconds"`
	RedisURL      string `koanf:"redis_url" mapstructure:"redis_url"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Payrails    PayrailsConfig  `koanf:"payrails" mapstructure:"payrails"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Store       StoreConfig     `koanf:"store" mapstructure:"store"`
	Audit       AuditConfig     `koanf:"audit" mapstructure:"audit"`
	RateLimit   RateLimitConfig `koanf:"ratelimit" mapstructure:"ratelimit"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Payrails: PayrailsConfig{
			BaseURL:        DefaultPayrailsBaseURL,
			AuditData:      DefaultAuditData,
			TimeoutSeconds: 30,
		},
		HTTP: HTTPConfig{
			Addr:         DefaultHTTPAddr,
			MaxBodyBytes: 64 << 10,
		},
		Audit: AuditConfig{
			RetentionHours: 720,
			KafkaTopic:     DefaultKafkaTopic,
		},
		RateLimit: RateLimitConfig{
			Requests:      30,
			WindowSeconds: 60,
		},
	}
}

// Validate checks structural values only. Upstream credentials are checked
// on every reveal so a process can start without them.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Payrails.TimeoutSeconds < 0 {
		return fmt.Errorf("core: payrails.timeout_seconds must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("core: http.max_body_bytes must be >= 0")
	}
	switch strings.TrimSpace(c.Store.Driver) {
	case "", StoreDriverSQLite, StoreDriverPostgres:
	default:
		return fmt.Errorf("core: store.driver %q is invalid", c.Store.Driver)
	}
	if c.Store.Enabled() && strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("core: store.dsn is required when store.driver is set")
	}
	if c.Audit.RetentionHours < 0 || c.Audit.RowCap < 0 {
		return fmt.Errorf("core: audit retention values must be >= 0")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("core: ratelimit.requests must be > 0")
		}
		if c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("core: ratelimit.window_seconds must be > 0")
		}
	}
	return nil
}

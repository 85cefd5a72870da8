package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment. A .env
// file in the working directory is loaded first when present.
type Config struct {
	Environment string

	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig

	// ListsPath points at the YAML list definitions; empty serves
	// DefaultLists.
	ListsPath string
}

type ServerConfig struct {
	Port             int
	ShutdownTimeout  time.Duration
	EnableReflection bool
	TLS              TLSConfig
}

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type DatabaseConfig struct {
	URL             string
	MigrationsPath  string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Timeout         time.Duration
	// Serializable runs list transactions at SERIALIZABLE isolation, so
	// concurrent writers on one scope fail with a retryable conflict instead
	// of interleaving.
	Serializable bool
}

type ObservabilityConfig struct {
	EnableMetrics       bool
	MetricsPort         int
	PrometheusNamespace string

	EnableTracing   bool
	TracingEndpoint string

	LogLevel  string
	LogFormat string // json or console
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var e env
	cfg := &Config{
		Environment: e.str("ENVIRONMENT", "development"),

		Server: ServerConfig{
			Port:             e.num("PORT", 8080),
			ShutdownTimeout:  e.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
			EnableReflection: e.flag("ENABLE_REFLECTION", false),
			TLS: TLSConfig{
				Enabled:  e.flag("TLS_ENABLED", false),
				CertFile: e.str("TLS_CERT_FILE", "/etc/tls/tls.crt"),
				KeyFile:  e.str("TLS_KEY_FILE", "/etc/tls/tls.key"),
			},
		},

		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MigrationsPath:  e.str("MIGRATIONS_PATH", "./internal/infrastructure/postgres/migrations"),
			MaxOpenConns:    e.num("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.num("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: e.duration("DB_CONN_MAX_IDLE_TIME", time.Minute),
			Timeout:         e.duration("DATABASE_TIMEOUT", 10*time.Second),
			Serializable:    e.flag("DB_SERIALIZABLE", false),
		},

		Observability: ObservabilityConfig{
			EnableMetrics:       e.flag("ENABLE_METRICS", true),
			MetricsPort:         e.num("METRICS_PORT", 9090),
			PrometheusNamespace: e.str("PROMETHEUS_NAMESPACE", "listforge"),
			EnableTracing:       e.flag("ENABLE_TRACING", true),
			TracingEndpoint:     e.str("JAEGER_ENDPOINT", "localhost:4317"),
			LogLevel:            e.str("LOG_LEVEL", "info"),
			LogFormat:           e.str("LOG_FORMAT", "json"),
		},

		ListsPath: e.str("LISTS_CONFIG", ""),
	}

	if err := e.err(); err != nil {
		return nil, fmt.Errorf("malformed environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	errs := []error{
		c.Server.validate(),
		c.Database.validate(),
		c.Observability.validate(c.Server.Port),
	}

	if c.ListsPath != "" {
		if _, err := os.Stat(c.ListsPath); err != nil {
			errs = append(errs, fmt.Errorf("lists config file not found: %s", c.ListsPath))
		}
	}

	return errors.Join(errs...)
}

func (s ServerConfig) validate() error {
	if !validPort(s.Port) {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if !s.TLS.Enabled {
		return nil
	}
	if s.TLS.CertFile == "" || s.TLS.KeyFile == "" {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS is enabled")
	}
	for _, file := range []string{s.TLS.CertFile, s.TLS.KeyFile} {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("TLS file not found: %s", file)
		}
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	if d.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if d.MaxOpenConns < d.MaxIdleConns {
		return fmt.Errorf("max_open_conns (%d) must be >= max_idle_conns (%d)", d.MaxOpenConns, d.MaxIdleConns)
	}
	return nil
}

func (o ObservabilityConfig) validate(serverPort int) error {
	if o.EnableMetrics {
		if !validPort(o.MetricsPort) {
			return fmt.Errorf("invalid metrics port: %d", o.MetricsPort)
		}
		if o.MetricsPort == serverPort {
			return fmt.Errorf("metrics port must differ from server port (%d)", serverPort)
		}
	}

	switch o.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", o.LogLevel)
	}

	if o.LogFormat != "json" && o.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", o.LogFormat)
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// env reads typed variables, remembering every value it failed to parse.
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) num(key string, def int) int {
	return parse(e, key, def, strconv.Atoi)
}

func (e *env) flag(key string, def bool) bool {
	return parse(e, key, def, strconv.ParseBool)
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	return parse(e, key, def, time.ParseDuration)
}

func (e *env) err() error {
	return errors.Join(e.errs...)
}

func parse[T any](e *env, key string, def T, fn func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := fn(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		return def
	}
	return v
}

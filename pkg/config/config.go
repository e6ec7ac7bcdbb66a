package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arborcms/arbor/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Authz         AuthzConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds the optional entity cache configuration. An empty URL
// disables the cache.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// AuthzConfig holds authorization service configuration
type AuthzConfig struct {
	// RenderPrincipal is the principal id granted the read-only view bypass.
	RenderPrincipal string

	// GroupRefreshInterval is how often the group graph snapshot refreshes.
	GroupRefreshInterval time.Duration

	// TemplateCacheSize and TemplateCacheTTL bound the template registry cache.
	TemplateCacheSize int
	TemplateCacheTTL  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables, with an optional
// YAML overlay pointed at by ARBOR_CONFIG_FILE. Environment variables win
// over the file.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("ARBOR_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxConns:    25,
			MinConns:    5,
			Timeout:     10 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Authz: AuthzConfig{
			GroupRefreshInterval: time.Minute,
			TemplateCacheSize:    1024,
			TemplateCacheTTL:     time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.InfoLevel,
			MetricsEnabled: true,
		},
	}
}

// fileConfig mirrors Config for the YAML overlay. Every field is optional;
// durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Host            *string `yaml:"host"`
		Port            *string `yaml:"port"`
		ReadTimeout     *string `yaml:"read_timeout"`
		WriteTimeout    *string `yaml:"write_timeout"`
		IdleTimeout     *string `yaml:"idle_timeout"`
		ShutdownTimeout *string `yaml:"shutdown_timeout"`
		HealthPort      *string `yaml:"health_port"`
	} `yaml:"server"`
	Database struct {
		URL         *string  `yaml:"url"`
		ReplicaURLs []string `yaml:"replica_urls"`
		MaxConns    *int     `yaml:"max_conns"`
		MinConns    *int     `yaml:"min_conns"`
		Timeout     *string  `yaml:"timeout"`
	} `yaml:"database"`
	Redis struct {
		URL *string `yaml:"url"`
		TTL *string `yaml:"ttl"`
	} `yaml:"redis"`
	Authz struct {
		RenderPrincipal      *string `yaml:"render_principal"`
		GroupRefreshInterval *string `yaml:"group_refresh_interval"`
		TemplateCacheSize    *int    `yaml:"template_cache_size"`
		TemplateCacheTTL     *string `yaml:"template_cache_ttl"`
	} `yaml:"authz"`
	Observability struct {
		LogLevel       *string `yaml:"log_level"`
		MetricsEnabled *bool   `yaml:"metrics_enabled"`
	} `yaml:"observability"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	setString(&cfg.Server.Host, fc.Server.Host)
	setString(&cfg.Server.Port, fc.Server.Port)
	if err := setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.IdleTimeout, fc.Server.IdleTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout); err != nil {
		return err
	}
	setString(&cfg.Server.HealthPort, fc.Server.HealthPort)

	setString(&cfg.Database.URL, fc.Database.URL)
	if len(fc.Database.ReplicaURLs) > 0 {
		cfg.Database.ReplicaURLs = fc.Database.ReplicaURLs
	}
	setInt(&cfg.Database.MaxConns, fc.Database.MaxConns)
	setInt(&cfg.Database.MinConns, fc.Database.MinConns)
	if err := setDuration(&cfg.Database.Timeout, fc.Database.Timeout); err != nil {
		return err
	}

	setString(&cfg.Redis.URL, fc.Redis.URL)
	if err := setDuration(&cfg.Redis.TTL, fc.Redis.TTL); err != nil {
		return err
	}

	setString(&cfg.Authz.RenderPrincipal, fc.Authz.RenderPrincipal)
	if err := setDuration(&cfg.Authz.GroupRefreshInterval, fc.Authz.GroupRefreshInterval); err != nil {
		return err
	}
	setInt(&cfg.Authz.TemplateCacheSize, fc.Authz.TemplateCacheSize)
	if err := setDuration(&cfg.Authz.TemplateCacheTTL, fc.Authz.TemplateCacheTTL); err != nil {
		return err
	}

	if fc.Observability.LogLevel != nil {
		cfg.Observability.LogLevel = parseLogLevel(*fc.Observability.LogLevel)
	}
	if fc.Observability.MetricsEnabled != nil {
		cfg.Observability.MetricsEnabled = *fc.Observability.MetricsEnabled
	}

	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("ARBOR_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("ARBOR_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("ARBOR_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("ARBOR_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("ARBOR_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("ARBOR_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("ARBOR_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.URL = getEnv("ARBOR_POSTGRES_URL", cfg.Database.URL)
	if replicas := os.Getenv("ARBOR_POSTGRES_REPLICA_URLS"); replicas != "" {
		cfg.Database.ReplicaURLs = splitAndTrim(replicas)
	}
	cfg.Database.MaxConns = getEnvInt("ARBOR_POSTGRES_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("ARBOR_POSTGRES_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.Timeout = getEnvDuration("ARBOR_POSTGRES_TIMEOUT", cfg.Database.Timeout)
	cfg.Database.MaxLifetime = getEnvDuration("ARBOR_POSTGRES_MAX_LIFETIME", cfg.Database.MaxLifetime)
	cfg.Database.MaxIdleTime = getEnvDuration("ARBOR_POSTGRES_MAX_IDLE_TIME", cfg.Database.MaxIdleTime)

	cfg.Redis.URL = getEnv("ARBOR_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.TTL = getEnvDuration("ARBOR_REDIS_TTL", cfg.Redis.TTL)

	cfg.Authz.RenderPrincipal = getEnv("ARBOR_RENDER_PRINCIPAL", cfg.Authz.RenderPrincipal)
	cfg.Authz.GroupRefreshInterval = getEnvDuration("ARBOR_GROUP_REFRESH_INTERVAL", cfg.Authz.GroupRefreshInterval)
	cfg.Authz.TemplateCacheSize = getEnvInt("ARBOR_TEMPLATE_CACHE_SIZE", cfg.Authz.TemplateCacheSize)
	cfg.Authz.TemplateCacheTTL = getEnvDuration("ARBOR_TEMPLATE_CACHE_TTL", cfg.Authz.TemplateCacheTTL)

	if level := os.Getenv("ARBOR_LOG_LEVEL"); level != "" {
		cfg.Observability.LogLevel = parseLogLevel(level)
	}
	cfg.Observability.MetricsEnabled = getEnvBool("ARBOR_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max connections must not be below min connections")
	}

	if c.Authz.GroupRefreshInterval <= 0 {
		return fmt.Errorf("group refresh interval must be positive")
	}
	if c.Authz.TemplateCacheSize <= 0 {
		return fmt.Errorf("template cache size must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", *src, err)
	}
	*dst = d
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

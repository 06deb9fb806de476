package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Quota     QuotaConfig     `yaml:"quota"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Storage   StorageConfig   `yaml:"storage"`
	Converter ConverterConfig `yaml:"converter"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds the Redis connection used by the rate-limit counters.
// Redis is optional; with no address configured the in-process counter is used.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RabbitMQConfig holds the connection and exchange used for lifecycle events.
// Events are optional; with no host configured publishing is disabled.
type RabbitMQConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	VHost         string        `yaml:"vhost"`
	Exchange      string        `yaml:"exchange"`
	RoutingKey    string        `yaml:"routing_key"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// QuotaConfig holds the default monthly limits copied onto a user's quota
// record when it is first created.
type QuotaConfig struct {
	DefaultConversionsLimit int   `yaml:"default_conversions_limit"`
	DefaultBytesLimit       int64 `yaml:"default_bytes_limit"`
}

// RateLimitConfig holds the static tier table and resolver settings.
type RateLimitConfig struct {
	AdminExemption bool             `yaml:"admin_exemption"`
	CacheTTL       time.Duration    `yaml:"cache_ttl"`
	Tiers          domain.TierTable `yaml:"tiers"`
}

// StorageConfig holds S3 output storage settings. When disabled, completed
// jobs keep their output bytes inline.
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// ConverterConfig holds the external conversion engine and the format pairs
// it serves.
type ConverterConfig struct {
	BaseURL string          `yaml:"base_url"`
	Timeout time.Duration   `yaml:"timeout"`
	Pairs   []ConverterPair `yaml:"pairs"`
}

// ConverterPair declares one supported source/target pair and the engine
// route that performs it.
type ConverterPair struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Route  string `yaml:"route"`
}

// WebhookConfig holds the best-effort notifier settings.
type WebhookConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Quota.DefaultConversionsLimit <= 0 {
		return fmt.Errorf("quota default_conversions_limit must be greater than 0")
	}

	if c.Quota.DefaultBytesLimit <= 0 {
		return fmt.Errorf("quota default_bytes_limit must be greater than 0")
	}

	if c.RateLimit.CacheTTL <= 0 {
		return fmt.Errorf("ratelimit cache_ttl must be greater than 0")
	}

	if err := c.validateTiers(); err != nil {
		return err
	}

	if c.Converter.BaseURL == "" {
		return fmt.Errorf("converter base_url is required")
	}

	if len(c.Converter.Pairs) == 0 {
		return fmt.Errorf("at least one converter pair is required")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required when storage is enabled")
	}

	// The broker dial loop runs retry_attempts times, so zero would never
	// connect.
	if c.RabbitMQ.Host != "" && c.RabbitMQ.RetryAttempts <= 0 {
		return fmt.Errorf("rabbitmq retry_attempts must be greater than 0")
	}

	return nil
}

// validateTiers requires every known tier to carry both policies. A tier
// missing here would otherwise surface as a fatal error at resolution time.
func (c *Config) validateTiers() error {
	for _, tier := range []string{domain.TierFree, domain.TierBasic, domain.TierPremium, domain.TierUnlimited} {
		policies, ok := c.RateLimit.Tiers[tier]
		if !ok {
			return fmt.Errorf("ratelimit tier %s is not configured", tier)
		}
		if policies.Standard.PermitLimit <= 0 || policies.Standard.WindowMinutes <= 0 {
			return fmt.Errorf("ratelimit tier %s has an invalid standard policy", tier)
		}
		if policies.Conversion.PermitLimit <= 0 || policies.Conversion.WindowMinutes <= 0 {
			return fmt.Errorf("ratelimit tier %s has an invalid conversion policy", tier)
		}
	}
	return nil
}

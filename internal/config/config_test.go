package config

import (
	"testing"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "fileforge_db", cfg.Database.Database)
				assert.Equal(t, 100, cfg.Quota.DefaultConversionsLimit)
				assert.Equal(t, int64(1073741824), cfg.Quota.DefaultBytesLimit)
				assert.Equal(t, 5*time.Minute, cfg.RateLimit.CacheTTL)
				assert.True(t, cfg.RateLimit.AdminExemption)
				assert.Equal(t, "fileforge-output", cfg.Storage.Bucket)
				assert.Equal(t, "http://gotenberg:3000", cfg.Converter.BaseURL)
				assert.Len(t, cfg.Converter.Pairs, 4)

				free, ok := cfg.RateLimit.Tiers[domain.TierFree]
				require.True(t, ok)
				assert.Equal(t, 100, free.Standard.PermitLimit)
				assert.Equal(t, 60, free.Standard.WindowMinutes)
				assert.Equal(t, 10, free.Conversion.PermitLimit)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		errString string
	}{
		{
			name:   "valid config passes",
			mutate: func(cfg *Config) {},
		},
		{
			name:      "invalid server port",
			mutate:    func(cfg *Config) { cfg.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(cfg *Config) { cfg.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "zero default conversions limit",
			mutate:    func(cfg *Config) { cfg.Quota.DefaultConversionsLimit = 0 },
			errString: "default_conversions_limit",
		},
		{
			name:      "zero cache ttl",
			mutate:    func(cfg *Config) { cfg.RateLimit.CacheTTL = 0 },
			errString: "cache_ttl",
		},
		{
			name:      "missing tier",
			mutate:    func(cfg *Config) { delete(cfg.RateLimit.Tiers, domain.TierBasic) },
			errString: "tier BASIC is not configured",
		},
		{
			name: "tier with invalid conversion policy",
			mutate: func(cfg *Config) {
				policies := cfg.RateLimit.Tiers[domain.TierFree]
				policies.Conversion.WindowMinutes = 0
				cfg.RateLimit.Tiers[domain.TierFree] = policies
			},
			errString: "invalid conversion policy",
		},
		{
			name:      "missing converter base url",
			mutate:    func(cfg *Config) { cfg.Converter.BaseURL = "" },
			errString: "converter base_url is required",
		},
		{
			name:      "no converter pairs",
			mutate:    func(cfg *Config) { cfg.Converter.Pairs = nil },
			errString: "at least one converter pair",
		},
		{
			name: "storage enabled without bucket",
			mutate: func(cfg *Config) {
				cfg.Storage.Enabled = true
				cfg.Storage.Bucket = ""
			},
			errString: "storage bucket is required",
		},
		{
			name:      "rabbitmq host without retry attempts",
			mutate:    func(cfg *Config) { cfg.RabbitMQ.RetryAttempts = 0 },
			errString: "retry_attempts must be greater than 0",
		},
		{
			name: "rabbitmq disabled skips retry check",
			mutate: func(cfg *Config) {
				cfg.RabbitMQ.Host = ""
				cfg.RabbitMQ.RetryAttempts = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

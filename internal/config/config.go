package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

type VaultConfig struct {
	// MasterKeyHex is the 32-byte master key, hex encoded. Supplied via
	// environment in production; never written to the config file.
	MasterKeyHex       string        `mapstructure:"master_key" envconfig:"VAULT_MASTER_KEY"`
	KeyAltName         string        `mapstructure:"key_alt_name" envconfig:"VAULT_KEY_ALT_NAME"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl" envconfig:"VAULT_CACHE_TTL"`
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures" envconfig:"VAULT_BREAKER_MAX_FAILURES"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout" envconfig:"VAULT_BREAKER_TIMEOUT"`
}

type AuditConfig struct {
	MaxRetries      uint64        `mapstructure:"max_retries" envconfig:"AUDIT_MAX_RETRIES"`
	InitialInterval time.Duration `mapstructure:"initial_interval" envconfig:"AUDIT_INITIAL_INTERVAL"`
	MaxInterval     time.Duration `mapstructure:"max_interval" envconfig:"AUDIT_MAX_INTERVAL"`
	Retention       time.Duration `mapstructure:"retention" envconfig:"AUDIT_RETENTION"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"AUDIT_CLEANUP_INTERVAL"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" envconfig:"METRICS_ADDR"`
}

type LogConfig struct {
	Level string `mapstructure:"level" envconfig:"LOG_LEVEL"`
}

// MasterKey decodes the configured master key.
func (v VaultConfig) MasterKey() ([]byte, error) {
	key, err := hex.DecodeString(v.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	return key, nil
}

// LoadConfig reads the YAML config file, then applies PHI_-prefixed
// environment overrides on top.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("vault.key_alt_name", "primary-phi-key")
	viper.SetDefault("vault.cache_ttl", "10m")
	viper.SetDefault("audit.max_retries", 3)
	viper.SetDefault("audit.retention", "17520h") // two years
	viper.SetDefault("audit.cleanup_interval", "24h")
	viper.SetDefault("metrics.addr", ":9090")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("phi", &config); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	return &config, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	PriceFeed PriceFeedConfig `mapstructure:"price_feed"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type PriceFeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type RateLimitConfig struct {
	AuthPerMinute   float64 `mapstructure:"auth_per_minute"`
	OrdersPerMinute float64 `mapstructure:"orders_per_minute"`
	ReadsPerMinute  float64 `mapstructure:"reads_per_minute"`
	Burst           int     `mapstructure:"burst"`
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables are prefixed with ORDER_API and use underscores in
// place of dots, e.g. ORDER_API_PRICE_FEED_BASE_URL overrides
// price_feed.base_url. Missing values fall back to defaults.
func Load(configPath string) (*Config, error) {
	viper.Reset()

	setDefaults()

	viper.SetEnvPrefix("ORDER_API")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
		// A config file is optional; defaults and env cover everything.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("env", "development")
	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("database.dsn", "orders.db")
	viper.SetDefault("auth.jwt_secret", "order-api-secret-key")
	viper.SetDefault("auth.api_key", "test-api-key")
	viper.SetDefault("auth.api_secret", "test-api-secret")
	viper.SetDefault("auth.token_ttl", 24*time.Hour)
	viper.SetDefault("price_feed.base_url", "http://localhost:9090/prices")
	viper.SetDefault("price_feed.timeout", 5*time.Second)
	viper.SetDefault("price_feed.max_attempts", 3)
	viper.SetDefault("price_feed.initial_backoff", 200*time.Millisecond)
	viper.SetDefault("price_feed.max_backoff", 500*time.Millisecond)
	viper.SetDefault("rate_limit.auth_per_minute", 10)
	viper.SetDefault("rate_limit.orders_per_minute", 100)
	viper.SetDefault("rate_limit.reads_per_minute", 1000)
	viper.SetDefault("rate_limit.burst", 1)
}

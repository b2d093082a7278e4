// Package config loads service configuration from defaults, an optional
// config.yaml, and CMDSVC_-prefixed environment variables, in increasing
// order of precedence.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr              string        `mapstructure:"addr"`
	PoolSize          int           `mapstructure:"pool_size"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	WebhookTimeout    time.Duration `mapstructure:"webhook_timeout"`
	WebhookMaxRetries int           `mapstructure:"webhook_max_retries"`
	LogLevel          string        `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("pool_size", runtime.NumCPU())
	v.SetDefault("command_timeout", time.Duration(0))
	v.SetDefault("webhook_timeout", 10*time.Second)
	v.SetDefault("webhook_max_retries", 5)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("CMDSVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("pool_size must be > 0, got %d", cfg.PoolSize)
	}
	return &cfg, nil
}

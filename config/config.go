// Package config loads client settings from defaults, an optional
// chatgpt.yaml file, CHATGPT_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/natexcvi/go-chatgpt/chatgpt"
	"github.com/natexcvi/go-chatgpt/retry"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "CHATGPT"
	DefaultHistoryDir = ".chatgpt_history"
	DefaultBaseURL    = "https://api.openai.com/v1"
	maxTemperature    = 2
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Model       string      `mapstructure:"model"`
	Temperature float32     `mapstructure:"temperature"`
	UseCache    bool        `mapstructure:"use_cache"`
	HistoryDir  string      `mapstructure:"history_dir"`
	BaseURL     string      `mapstructure:"base_url"`
	APIKey      string      `mapstructure:"api_key"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// SetDefaults registers every key on v so that environment variables are
// picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("model", chatgpt.DefaultModel)
	v.SetDefault("temperature", 0)
	v.SetDefault("use_cache", false)
	v.SetDefault("history_dir", DefaultHistoryDir)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_key", "")
	v.SetDefault("retry.attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.initial_backoff", retry.DefaultInitialBackoff)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "OPENAI_API_KEY")
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Model == "" {
		result = multierror.Append(result, fmt.Errorf("%w: model is required", ErrInvalidConfig))
	}
	if c.Temperature < 0 || c.Temperature > maxTemperature {
		result = multierror.Append(result, fmt.Errorf("%w: temperature must be between 0 and %d, got %g", ErrInvalidConfig, maxTemperature, c.Temperature))
	}
	if c.HistoryDir == "" {
		result = multierror.Append(result, fmt.Errorf("%w: history_dir is required", ErrInvalidConfig))
	}
	if c.Retry.Attempts < 1 {
		result = multierror.Append(result, fmt.Errorf("%w: retry.attempts must be at least 1, got %d", ErrInvalidConfig, c.Retry.Attempts))
	}
	if c.Retry.InitialBackoff < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: retry.initial_backoff must not be negative", ErrInvalidConfig))
	}
	return result.ErrorOrNil()
}

func (c Config) LogsDir() string {
	return filepath.Join(c.HistoryDir, "logs")
}

func (c Config) CacheDir() string {
	return filepath.Join(c.HistoryDir, "cache")
}

func (c Config) RetryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = c.Retry.Attempts
	policy.InitialBackoff = c.Retry.InitialBackoff
	return policy
}

// Options returns the request options the configuration implies.
func (c Config) Options() chatgpt.Options {
	return chatgpt.Options{
		Model:       c.Model,
		Temperature: c.Temperature,
		UseCache:    c.UseCache,
		N:           1,
	}
}

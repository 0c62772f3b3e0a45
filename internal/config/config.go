// Package config provides configuration loading, validation, and management
// for the check-in bot. It reads a YAML file, applies defaults and BOT_*
// environment overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Checkin   CheckinConfig   `mapstructure:"checkin"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the SQLite location for the check-in state table.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// AIConfig selects and configures the enrichment backend.
type AIConfig struct {
	Provider string        `mapstructure:"provider" validate:"oneof=gemini openai"`
	Timeout  time.Duration `mapstructure:"timeout"  validate:"min=1s,max=10m"`
	Gemini   GeminiConfig  `mapstructure:"gemini"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`

	// BreakerMaxFailures consecutive failures open the circuit; 0 disables it.
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures" validate:"min=0,max=100"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout" validate:"omitempty,min=1s"`
}

// GeminiConfig holds settings for the Google Gemini backend.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// OpenAIConfig holds settings for OpenAI-compatible backends.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"    validate:"omitempty,url"`
	Model       string  `mapstructure:"model"       validate:"required"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// TelegramConfig holds the bot token and the users allowed to talk to it.
type TelegramConfig struct {
	Token          string  `mapstructure:"token"            validate:"required"`
	AllowedUserIDs []int64 `mapstructure:"allowed_user_ids" validate:"min=1,dive,gt=0"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures one scheduled task. Interval takes precedence over
// Schedule (a cron expression with optional seconds field).
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,min=1s"`
}

// CheckinConfig tunes check-in timing and the per-call timeouts used around it.
type CheckinConfig struct {
	DefaultInterval      time.Duration `mapstructure:"default_interval"       validate:"min=1m"`
	RetryInterval        time.Duration `mapstructure:"retry_interval"         validate:"min=1s"`
	InitialDelay         time.Duration `mapstructure:"initial_delay"          validate:"min=1m"`
	MinDelayMinutes      int           `mapstructure:"min_delay_minutes"      validate:"min=1"`
	MaxDelayMinutes      int           `mapstructure:"max_delay_minutes"      validate:"gtefield=MinDelayMinutes"`
	FallbackDelayMinutes int           `mapstructure:"fallback_delay_minutes" validate:"min=1"`
	DefaultTimezone      string        `mapstructure:"default_timezone"       validate:"required,timezone"`
	MaxConcurrentSends   int           `mapstructure:"max_concurrent_sends"   validate:"min=1,max=32"`
	SendTimeout          time.Duration `mapstructure:"send_timeout"           validate:"min=1s"`
	DownloadTimeout      time.Duration `mapstructure:"download_timeout"       validate:"min=1s"`
	StoreTimeout         time.Duration `mapstructure:"store_timeout"          validate:"min=100ms"`
}

// JournalConfig points at the root directory of the record store.
type JournalConfig struct {
	RootDir string `mapstructure:"root_dir" validate:"required"`
}

// MessagesConfig holds every user-facing string.
type MessagesConfig struct {
	Welcome          string `mapstructure:"welcome"            validate:"required"`
	Help             string `mapstructure:"help"               validate:"required"`
	GeneralError     string `mapstructure:"general_error"      validate:"required"`
	FallbackReply    string `mapstructure:"fallback_reply"     validate:"required"`
	SaveFailedSuffix string `mapstructure:"save_failed_suffix" validate:"required"`
	DownloadFailed   string `mapstructure:"download_failed"    validate:"required"`
	CheckinFallback  string `mapstructure:"checkin_fallback"   validate:"required"`
	TimezoneUsage    string `mapstructure:"timezone_usage"     validate:"required"`
	TimezoneUpdated  string `mapstructure:"timezone_updated"   validate:"required"`
	TimezoneInvalid  string `mapstructure:"timezone_invalid"   validate:"required"`
}

// LoadConfig loads configuration from, in increasing priority:
// 1. Default values
// 2. the YAML file at path (optional)
// 3. BOT_* environment variables, including ones from an optional .env file
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Configuration loaded",
		"ai_provider", cfg.AI.Provider,
		"db_path", cfg.Database.Path,
		"journal_root", cfg.Journal.RootDir,
		"default_timezone", cfg.Checkin.DefaultTimezone)

	return cfg, nil
}

// Validate checks struct tags plus the cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateAIConfig, AIConfig{})

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validateAIConfig requires the API key of whichever backend is selected.
func validateAIConfig(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(AIConfig)
	if !ok {
		return
	}

	switch cfg.Provider {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			sl.ReportError(cfg.Gemini.APIKey, "Gemini.APIKey", "APIKey", "required_for_provider", cfg.Provider)
		}
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			sl.ReportError(cfg.OpenAI.APIKey, "OpenAI.APIKey", "APIKey", "required_for_provider", cfg.Provider)
		}
	}
}

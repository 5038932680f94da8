package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config struct for environment variables.
type Config struct {
	D4Sign struct {
		BaseURL         string        `split_words:"true" default:"https://secure.d4sign.com.br/api/v1"`
		TokenAPI        string        `split_words:"true" required:"true"`
		CryptKey        string        `split_words:"true" required:"true"`
		RateLimitReason string        `split_words:"true" default:"Esta chave da API já atingiu o tempo limite para este método"`
		RequestTimeout  time.Duration `split_words:"true" default:"30s"`
	}

	TargetDir         string        `envconfig:"TARGET_DIR" default:"contratos"`
	MaxParallel       int           `envconfig:"MAX_PARALLEL" default:"50"`
	JobTimeout        time.Duration `envconfig:"JOB_TIMEOUT" default:"60s"`
	ReportInterval    time.Duration `envconfig:"REPORT_INTERVAL" default:"15s"`
	RetryCooldown     time.Duration `envconfig:"RETRY_COOLDOWN" default:"10m"`
	MaxPasses         int           `envconfig:"MAX_PASSES" default:"12"`
	MaxRetryDuration  time.Duration `envconfig:"MAX_RETRY_DURATION" default:"0s"`
	PartialMaxAge     time.Duration `envconfig:"PARTIAL_MAX_AGE" default:"1h"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`
	ConfigFile        string        `envconfig:"CONFIG_FILE"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"d4sign_downloader"`
		OTLPEndpoint string `split_words:"true"`
	}

	Web struct {
		Enabled         bool          `split_words:"true" default:"true"`
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9092"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// fileConfig is the subset of settings a YAML file may override.
// Durations are strings so the file can use "10m" style values.
type fileConfig struct {
	TargetDir        *string `yaml:"target_dir"`
	MaxParallel      *int    `yaml:"max_parallel"`
	JobTimeout       *string `yaml:"job_timeout"`
	ReportInterval   *string `yaml:"report_interval"`
	RetryCooldown    *string `yaml:"retry_cooldown"`
	MaxPasses        *int    `yaml:"max_passes"`
	MaxRetryDuration *string `yaml:"max_retry_duration"`
}

// LoadConfig reads environment variables and populates the Config struct.
// When CONFIG_FILE is set, the keys present in that YAML file win over the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.TargetDir != nil {
		c.TargetDir = *fc.TargetDir
	}

	if fc.MaxParallel != nil {
		c.MaxParallel = *fc.MaxParallel
	}

	if fc.MaxPasses != nil {
		c.MaxPasses = *fc.MaxPasses
	}

	durations := []struct {
		key   string
		value *string
		dst   *time.Duration
	}{
		{"job_timeout", fc.JobTimeout, &c.JobTimeout},
		{"report_interval", fc.ReportInterval, &c.ReportInterval},
		{"retry_cooldown", fc.RetryCooldown, &c.RetryCooldown},
		{"max_retry_duration", fc.MaxRetryDuration, &c.MaxRetryDuration},
	}

	for _, d := range durations {
		if d.value == nil {
			continue
		}

		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}

		*d.dst = parsed
	}

	return nil
}

// Validate reports settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.TargetDir == "" {
		errs = append(errs, errors.New("target dir must not be empty"))
	}

	if c.MaxParallel <= 0 {
		errs = append(errs, fmt.Errorf("max parallel must be positive, got %d", c.MaxParallel))
	}

	if c.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("job timeout must be positive, got %s", c.JobTimeout))
	}

	if c.ReportInterval <= 0 {
		errs = append(errs, fmt.Errorf("report interval must be positive, got %s", c.ReportInterval))
	}

	if c.RetryCooldown < 0 {
		errs = append(errs, fmt.Errorf("retry cooldown must not be negative, got %s", c.RetryCooldown))
	}

	if c.MaxPasses < 0 {
		errs = append(errs, fmt.Errorf("max passes must not be negative, got %d", c.MaxPasses))
	}

	if c.MaxRetryDuration < 0 {
		errs = append(errs, fmt.Errorf("max retry duration must not be negative, got %s", c.MaxRetryDuration))
	}

	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

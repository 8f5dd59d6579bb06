package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for signalboard.
type Config struct {
	Backend Backend `yaml:"backend"`
	Catalog Catalog `yaml:"catalog"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	UI      UI      `yaml:"ui"`
	Logging Logging `yaml:"logging"`
}

// Backend locates the prediction service.
type Backend struct {
	BaseURL     string        `yaml:"base_url" default:"http://localhost:5000" validate:"required,url"`
	Timeout     time.Duration `yaml:"timeout" default:"60s" validate:"gt=0"`
	Concurrency int           `yaml:"concurrency" default:"4" validate:"min=1,max=32"`
}

// Catalog selects where the ticker list comes from.
type Catalog struct {
	Source       string `yaml:"source" default:"backend" validate:"oneof=backend wikipedia alpaca"`
	WikipediaURL string `yaml:"wikipedia_url" default:"https://en.wikipedia.org/wiki/List_of_S%26P_500_companies" validate:"required,url"`
}

// Alpaca holds credentials for the Alpaca catalog source.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
}

// UI holds dashboard preferences.
type UI struct {
	DefaultMode string `yaml:"default_mode" default:"buy" validate:"oneof=buy sell"`
	ShowMetrics bool   `yaml:"show_metrics"`
	ExportDir   string `yaml:"export_dir" default:"artifacts" validate:"required"`
}

// Logging configures the application logger.
type Logging struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	File       string `yaml:"file" default:"logs/signalboard.log" validate:"required"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"25" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" default:"5" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"14" validate:"min=0"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load builds a Config from struct defaults, the YAML file at path (skipped
// when path is empty), a .env file if present, and environment overrides,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("loading .env file", "error", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Catalog.Source == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return fmt.Errorf("invalid config: catalog source alpaca requires alpaca.api_key and alpaca.api_secret")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SIGNALBOARD_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("SIGNALBOARD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SIGNALBOARD_TIMEOUT: %w", err)
		}
		cfg.Backend.Timeout = d
	}
	if v := os.Getenv("SIGNALBOARD_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIGNALBOARD_CONCURRENCY: %w", err)
		}
		cfg.Backend.Concurrency = n
	}

	if v := os.Getenv("SIGNALBOARD_CATALOG_SOURCE"); v != "" {
		cfg.Catalog.Source = v
	}

	if v := os.Getenv("SIGNALBOARD_EXPORT_DIR"); v != "" {
		cfg.UI.ExportDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	// Standard Alpaca env vars, the names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	return nil
}

// Package config provides configuration management for hydronet.
//
// The config file tunes the pipeline and the process around it; stored
// answers and run history live in the database.
//
// Config file locations (priority order):
//  1. $HYDRONET_CONFIG
//  2. ./hydronet.yaml
//  3. $XDG_CONFIG_HOME/hydronet/config.yaml or ~/.config/hydronet/config.yaml
//  4. /etc/hydronet/config.yaml
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"hydronet/internal/aggregation"
)

// ErrInvalidConfig is returned when a config fails validation
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path. Keys missing from the
// file keep their default values.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Log:      LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Path: "./hydronet.db"},
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			Metrics:      true,
			MaxPathDepth: 16,
		},
		Pipeline: PipelineConfig{Options: aggregation.DefaultOptions()},
	}
}

// applyDefaults fills in values an explicit empty key cleared
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./hydronet.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.MaxPathDepth == 0 {
		c.Server.MaxPathDepth = 16
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

// Validate checks the struct constraints and reports every failing field
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: field is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gtfield", "gtefield":
		return fmt.Sprintf("%s: must not be below %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: validation failed (%s)", field, fe.Tag())
	}
}

// SlogLevel returns the slog level named by the config
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	stages := "all"
	if len(c.Pipeline.Stages) > 0 {
		stages = strings.Join(c.Pipeline.Stages, ",")
	}
	return fmt.Sprintf("stages: %s, db: %s, addr: %s, metrics: %t, log: %s/%s",
		stages, c.Database.Path, c.Server.Addr, c.Server.Metrics, c.Log.Level, c.Log.Format)
}

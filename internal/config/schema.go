package config

import (
	"time"

	"hydronet/internal/aggregation"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
	// Replay preloads stored answers before the first run
	Replay bool `yaml:"replay"`
}

// ServerConfig holds the HTTP surface settings
type ServerConfig struct {
	Addr         string   `yaml:"addr" validate:"required"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	Metrics      bool     `yaml:"metrics"`
	// Watch re-runs the pipeline when the topology file changes
	Watch bool `yaml:"watch"`
	// MaxPathDepth caps the hop count of path queries
	MaxPathDepth int `yaml:"max_path_depth" validate:"gte=0"`
}

// PipelineConfig selects and tunes the matcher stages. An empty stage list
// runs every stage; the order is always the pipeline's own.
type PipelineConfig struct {
	Stages  []string            `yaml:"stages,omitempty" validate:"dive,oneof=UnderfloorHeating PipeStrand ParallelPump Consumer ConsumerHeatingDistributorModule GeneratorOneFluid"`
	Options aggregation.Options `yaml:",inline"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

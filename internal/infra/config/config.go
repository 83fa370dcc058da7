// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Device  DeviceConfig  `yaml:"device"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
	// ControlToken guards the command RPCs. Empty disables the check.
	ControlToken string      `yaml:"control_token"`
	Hooks        HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// SessionConfig represents recording and playback settings.
// Pointer fields distinguish "unset" from an explicit zero.
type SessionConfig struct {
	QualityPreset string   `yaml:"quality_preset" default:"high_quality" validate:"oneof=low_quality high_quality"`
	Looping       *bool    `yaml:"looping"`
	QueueSize     int      `yaml:"queue_size" default:"16" validate:"gte=1,lte=1024"`
	Volume        *float64 `yaml:"volume" validate:"omitempty,gte=0,lte=1"`
	Rate          float64  `yaml:"rate" default:"1.0" validate:"gt=0,lte=32"`
	Muted         bool     `yaml:"muted"`
	CorrectPitch  *bool    `yaml:"correct_pitch"`
}

// DeviceConfig selects and configures the audio backend.
type DeviceConfig struct {
	Type     string         `yaml:"type" default:"simulated" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MetricsConfig represents Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MEMO_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MEMO_CONTROL_TOKEN"); v != "" {
		c.Server.ControlToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// LoopingEnabled reports whether loaded recordings loop. Defaults to true.
func (s SessionConfig) LoopingEnabled() bool {
	return s.Looping == nil || *s.Looping
}

// InitialVolume returns the configured volume. Defaults to 1.0.
func (s SessionConfig) InitialVolume() float64 {
	if s.Volume == nil {
		return 1.0
	}
	return *s.Volume
}

// PitchCorrection reports whether rate changes keep the pitch. Defaults to true.
func (s SessionConfig) PitchCorrection() bool {
	return s.CorrectPitch == nil || *s.CorrectPitch
}

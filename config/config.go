package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamsxin/telemetry-sampler/types"
)

// Environment overrides, read once by Load.
const (
	EnvSampleIntervalMs = "TELEMETRY_SAMPLE_INTERVAL_MS"
	EnvRetentionHours   = "TELEMETRY_RETENTION_HOURS"
	EnvLagResolutionMs  = "TELEMETRY_LAG_RESOLUTION_MS"
	EnvHTTPAddr         = "TELEMETRY_HTTP_ADDR"
	EnvLogLevel         = "TELEMETRY_LOG_LEVEL"
)

type Config struct {
	SampleIntervalMs int        `yaml:"sample_interval_ms"`
	RetentionHours   float64    `yaml:"retention_hours"`
	LagResolutionMs  int        `yaml:"lag_resolution_ms"`
	HTTP             HTTPConfig `yaml:"http"`
	Log              LogConfig  `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file or environment overrides are given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path (if non-empty), then applies environment overrides
// and defaults. A missing file is an error only when a path was given explicitly.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SamplerConfig converts to the sampler's duration-based configuration.
func (c *Config) SamplerConfig() types.SamplerConfig {
	return types.SamplerConfig{
		Interval:       time.Duration(c.SampleIntervalMs) * time.Millisecond,
		RetentionHours: c.RetentionHours,
		LagResolution:  time.Duration(c.LagResolutionMs) * time.Millisecond,
	}.Normalize()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSampleIntervalMs); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.SampleIntervalMs = n
		}
	}
	if v, ok := lookup(EnvRetentionHours); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.RetentionHours = f
		}
	}
	if v, ok := lookup(EnvLagResolutionMs); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.LagResolutionMs = n
		}
	}
	if v, ok := lookup(EnvHTTPAddr); ok && strings.TrimSpace(v) != "" {
		c.HTTP.Addr = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
}

// applyDefaults replaces missing or non-positive values.
func (c *Config) applyDefaults() {
	if c.SampleIntervalMs <= 0 {
		c.SampleIntervalMs = int(types.DefaultSampleInterval / time.Millisecond)
	}
	if c.RetentionHours <= 0 {
		c.RetentionHours = types.DefaultRetentionHours
	}
	if c.LagResolutionMs <= 0 {
		c.LagResolutionMs = int(types.DefaultLagResolution / time.Millisecond)
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: %w", c.Log.Level, ErrInvalidLogLevel)
	}
	return nil
}

var ErrInvalidLogLevel = errors.New("must be one of debug, info, warn, error")

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.yaml")

	data := `
retention_hours: 1
http:
  addr: "127.0.0.1:9000"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.SampleIntervalMs != 10000 {
		t.Fatalf("expected default interval 10000ms, got %d", cfg.SampleIntervalMs)
	}
	if cfg.RetentionHours != 1 {
		t.Fatalf("expected retention 1h, got %v", cfg.RetentionHours)
	}
	if cfg.LagResolutionMs != 10 {
		t.Fatalf("expected default lag resolution 10ms, got %d", cfg.LagResolutionMs)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected addr from file, got %s", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.Log.Level)
	}

	sc := cfg.SamplerConfig()
	if sc.Interval != 10*time.Second || sc.Capacity() != 360 {
		t.Fatalf("unexpected sampler config %+v (capacity %d)", sc, sc.Capacity())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvSampleIntervalMs, "5000")
	t.Setenv(EnvRetentionHours, "2.5")
	t.Setenv(EnvHTTPAddr, ":9999")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.SampleIntervalMs != 5000 {
		t.Errorf("expected interval 5000ms, got %d", cfg.SampleIntervalMs)
	}
	if cfg.RetentionHours != 2.5 {
		t.Errorf("expected retention 2.5h, got %v", cfg.RetentionHours)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %s", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if got := cfg.SamplerConfig().Capacity(); got != 1800 {
		t.Errorf("expected capacity 1800, got %d", got)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv(EnvSampleIntervalMs, "fast")
	t.Setenv(EnvRetentionHours, "-4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SampleIntervalMs != 10000 {
		t.Errorf("expected unparsable interval to fall back to 10000, got %d", cfg.SampleIntervalMs)
	}
	if cfg.RetentionHours != 24 {
		t.Errorf("expected negative retention to fall back to 24, got %v", cfg.RetentionHours)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Fatalf("expected ErrInvalidLogLevel, got %v", err)
	}

	if err := os.WriteFile(path, []byte("sample_interval_ms: [1, 2\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Development = true
	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()
}

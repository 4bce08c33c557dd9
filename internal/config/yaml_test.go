// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestDefault_Validates(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  source: synth
  sample_rate: 48000
analysis:
  fft_size: 1024
  num_channels: 16
  think_time: 20ms
output:
  color: "#00FF00"
  color_mode: hdr
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Audio.Source != SourceSynth || cfg.Audio.SampleRate != 48000 {
		t.Errorf("audio = %+v, want synth at 48000", cfg.Audio)
	}
	if cfg.Analysis.FFTSize != 1024 || cfg.Analysis.NumChannels != 16 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.ThinkTime != 20*time.Millisecond {
		t.Errorf("ThinkTime = %s, want 20ms", cfg.Analysis.ThinkTime)
	}
	// Untouched keys keep their defaults.
	if cfg.Analysis.DecayTime != DefaultDecayTime {
		t.Errorf("DecayTime = %g, want %g", cfg.Analysis.DecayTime, DefaultDecayTime)
	}
	if cfg.Output.AccentLength != DefaultAccentLength {
		t.Errorf("AccentLength = %d, want %d", cfg.Output.AccentLength, DefaultAccentLength)
	}
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Audio.Source = "radio" }},
		{"file source without file", func(c *Config) { c.Audio.Source = SourceFile }},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"three channels", func(c *Config) { c.Audio.InputChannels = 3 }},
		{"gate always closed", func(c *Config) { c.Audio.GateThreshold = 1 }},
		{"tiny fft", func(c *Config) { c.Analysis.FFTSize = 4 }},
		{"overlap of one", func(c *Config) { c.Analysis.OverlapFraction = 1 }},
		{"negative overlap", func(c *Config) { c.Analysis.OverlapFraction = -0.1 }},
		{"zero exponent", func(c *Config) { c.Analysis.Exponent = 0 }},
		{"zero decay time", func(c *Config) { c.Analysis.DecayTime = 0 }},
		{"no channels", func(c *Config) { c.Analysis.NumChannels = 0 }},
		{"max freq above nyquist", func(c *Config) { c.Analysis.MaxFrequency = 30000 }},
		{"max freq below one bin", func(c *Config) { c.Analysis.MaxFrequency = 10 }},
		{"empty agc window", func(c *Config) { c.Analysis.AGCWindowLength = 0 }},
		{"zero agc target", func(c *Config) { c.Analysis.AGCTarget = 0 }},
		{"boom count too large", func(c *Config) { c.Analysis.BoomCount = 10000 }},
		{"zero think time", func(c *Config) { c.Analysis.ThinkTime = 0 }},
		{"odd split", func(c *Config) { c.Analysis.Split = true; c.Analysis.NumChannels = 81 }},
		{"serial without baud", func(c *Config) { c.Output.SerialDevice = "/dev/ttyUSB0"; c.Output.BaudRate = 0 }},
		{"bad colour", func(c *Config) { c.Output.Color = "purple" }},
		{"short colour", func(c *Config) { c.Output.Color = "#FFF" }},
		{"bad colour mode", func(c *Config) { c.Output.ColorMode = "neon" }},
		{"bad bit depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 8 }},
		{"udp without port", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_AGCDisabledSkipsAGCChecks(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Analysis.AGCEnabled = false
	cfg.Analysis.AGCTarget = 0
	cfg.Analysis.AGCWindowLength = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected AGC options to be ignored when disabled, got %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LEDVIZ_LOG_LEVEL", "warn")
	t.Setenv("LEDVIZ_FFT_SIZE", "2048")
	t.Setenv("LEDVIZ_UDP_ENABLED", "true")
	t.Setenv("LEDVIZ_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("LEDVIZ_UDP_SEND_INTERVAL", "5ms")
	t.Setenv("LEDVIZ_DEBUG", "not-a-bool")

	path := writeTempConfig(t, "log_level: debug\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want env value warn", cfg.LogLevel)
	}
	if cfg.Analysis.FFTSize != 2048 {
		t.Errorf("FFTSize = %d, want 2048", cfg.Analysis.FFTSize)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Transport.UDPMinInterval != 5*time.Millisecond {
		t.Errorf("UDPMinInterval = %s, want 5ms", cfg.Transport.UDPMinInterval)
	}
	if cfg.Debug {
		t.Error("unparseable LEDVIZ_DEBUG should be ignored")
	}
}

func TestLoadConfig_InvalidFileFailsValidation(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "analysis:\n  num_channels: 0\n")
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSideChannels(t *testing.T) {
	t.Parallel()
	a := Default().Analysis
	if got := a.SideChannels(); got != DefaultNumChannels {
		t.Errorf("mono SideChannels = %d, want %d", got, DefaultNumChannels)
	}
	a.Split = true
	if got := a.SideChannels(); got != DefaultNumChannels/2 {
		t.Errorf("split SideChannels = %d, want %d", got, DefaultNumChannels/2)
	}
}

func TestQueueCapacities(t *testing.T) {
	t.Parallel()
	a := Default().Analysis
	if got := a.SampleQueueCapacity(); got != 2*DefaultFFTSize {
		t.Errorf("SampleQueueCapacity = %d, want %d", got, 2*DefaultFFTSize)
	}
	a.SampleQueue, a.FrameQueue = 7, 3
	if a.SampleQueueCapacity() != 7 || a.FrameQueueCapacity() != 3 {
		t.Errorf("explicit capacities not honoured: %d %d", a.SampleQueueCapacity(), a.FrameQueueCapacity())
	}
}

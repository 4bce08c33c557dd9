// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Command   string          `yaml:"-"`         // A one-off command to execute instead of running the pipeline.
	Audio     AudioConfig     `yaml:"audio"`     // Audio source settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral pipeline tuning.
	Output    OutputConfig    `yaml:"output"`    // LED strip and local sinks.
	Recording RecordingConfig `yaml:"recording"` // Raw input recording.
	Transport TransportConfig `yaml:"transport"` // Network sinks (UDP, WebSocket).
}

// AudioConfig holds settings related to the audio source.
type AudioConfig struct {
	Source          string  `yaml:"source"`            // "device", "file" or "synth".
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	DeviceName      string  `yaml:"device_name"`       // Substring match on device name, overrides input_device.
	SampleRate      float64 `yaml:"sample_rate"`       // Requested capture rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // PortAudio callback size in frames.
	InputChannels   int     `yaml:"input_channels"`    // 1 (mono, duplicated) or 2 (stereo).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Noise gate level in [0,1); 0 disables the gate.
	File            string  `yaml:"file"`              // Audio file for the "file" source.
	Loop            bool    `yaml:"loop"`              // Restart the file source at EOF.
}

// AnalysisConfig holds the spectral pipeline options.
type AnalysisConfig struct {
	FFTSize         int           `yaml:"fft_size"`          // Transform window length.
	Window          string        `yaml:"window"`            // Taper name (Nuttall, Hann, ...).
	Transform       string        `yaml:"transform"`         // FFT backend: "gonum" or "godsp".
	DecayTime       float64       `yaml:"decay_time"`        // Release time constant in seconds.
	DecayEpsilon    float64       `yaml:"decay_epsilon"`     // Floor below which smoothed values snap to 0.
	MaxFrequency    float64       `yaml:"max_frequency"`     // Upper bound of the mapped spectrum in Hz.
	NumChannels     int           `yaml:"num_channels"`      // Output vector length.
	OverlapFraction float64       `yaml:"overlap_fraction"`  // Fraction of the window retained between cycles.
	Exponent        float64       `yaml:"exponent"`          // Perceptual curve applied to energies.
	Scale           float64       `yaml:"scale"`             // Output scale applied before clamping.
	AGCEnabled      bool          `yaml:"agc_enabled"`       // Spectral gain control.
	AGCTarget       float64       `yaml:"agc_target"`        // Target peak level.
	AGCWindowLength int           `yaml:"agc_window_length"` // Number of peaks in the running average.
	AGCBase         float64       `yaml:"agc_base"`          // Equalizer divisor.
	AGCEqualizer    float64       `yaml:"agc_equalizer"`     // Equalizer offset.
	PreAGC          bool          `yaml:"pre_agc"`           // Time-domain gain control before windowing.
	PreAGCTarget    float64       `yaml:"pre_agc_target"`    // Target peak for the time-domain stage.
	BoomCount       int           `yaml:"boom_count"`        // Lowest bins averaged into the impact accent (0 disables).
	Split           bool          `yaml:"split"`             // Analyse left and right separately, num_channels/2 each.
	ThinkTime       time.Duration `yaml:"think_time"`        // Pacing budget per cycle.
	SampleQueue     int           `yaml:"sample_queue"`      // Sample queue capacity (0 = 2*fft_size).
	FrameQueue      int           `yaml:"frame_queue"`       // Frame queue capacity (0 = 10).
}

// OutputConfig holds LED strip and local sink settings.
type OutputConfig struct {
	SerialDevice string `yaml:"serial_device"` // Adalight serial device path, empty disables.
	BaudRate     int    `yaml:"baud_rate"`     // Serial line speed, 8N1 without flow control.
	Color        string `yaml:"color"`         // Base LED colour as hex RRGGBB.
	ColorMode    string `yaml:"color_mode"`    // "flat", "hdr", "superhdr" or "rainbow".
	AccentLength int    `yaml:"accent_length"` // LEDs per impact accent bar.
	Meter        bool   `yaml:"meter"`         // Live terminal meter.
	LogFrames    bool   `yaml:"log_frames"`    // Log every frame at debug level.
}

// RecordingConfig holds settings related to raw input recording.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the captured input to WAV.
	OutputDir string `yaml:"output_dir"` // Directory to save recordings.
	File      string `yaml:"file"`       // Explicit file name, generated when empty.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port (e.g., "127.0.0.1:9090").
	UDPMinInterval   time.Duration `yaml:"udp_min_interval"`   // Minimum interval between packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast frames to browsers.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for /ws.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"ledviz.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, v...))
}

// Validate checks every option the pipeline depends on. It is the fail-fast
// gate: nothing is started when it returns an error.
func (c *Config) Validate() error {
	a := c.Audio
	switch a.Source {
	case SourceDevice, SourceSynth:
	case SourceFile:
		if a.File == "" {
			return invalid("audio.file must be set when audio.source is %q", SourceFile)
		}
	default:
		return invalid("audio.source %q is not one of device, file, synth", a.Source)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device %d is invalid", a.InputDevice)
	}
	if a.InputChannels != 1 && a.InputChannels != 2 {
		return invalid("audio.input_channels must be 1 or 2, got %d", a.InputChannels)
	}
	if a.FramesPerBuffer <= 0 {
		return invalid("audio.frames_per_buffer must be positive, got %d", a.FramesPerBuffer)
	}
	if a.GateThreshold < 0 || a.GateThreshold >= 1 {
		return invalid("audio.gate_threshold %g outside [0, 1)", a.GateThreshold)
	}

	if err := c.Analysis.Validate(a.SampleRate); err != nil {
		return err
	}

	o := c.Output
	switch strings.ToLower(o.ColorMode) {
	case "flat", "hdr", "superhdr", "super_hdr", "rainbow":
	default:
		return invalid("output.color_mode %q is not one of flat, hdr, superhdr, rainbow", o.ColorMode)
	}
	if hex := strings.TrimPrefix(o.Color, "#"); len(hex) != 6 {
		return invalid("output.color %q must have 6 hex digits", o.Color)
	} else if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return invalid("output.color %q is not a hex colour", o.Color)
	}
	if o.SerialDevice != "" && o.BaudRate <= 0 {
		return invalid("output.baud_rate must be positive, got %d", o.BaudRate)
	}
	if o.AccentLength < 0 {
		return invalid("output.accent_length must not be negative, got %d", o.AccentLength)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return invalid("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
	}

	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return invalid("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPMinInterval < 0 {
			return invalid("transport.udp_min_interval must not be negative")
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when websocket is enabled")
	}

	return nil
}

// Validate checks the analysis options against the sample rate they will
// run at. Component constructors call it again with the real device rate.
func (a AnalysisConfig) Validate(sampleRate float64) error {
	if a.FFTSize < MinFFTSize || a.FFTSize > MaxFFTSize {
		return invalid("analysis.fft_size %d outside [%d, %d]", a.FFTSize, MinFFTSize, MaxFFTSize)
	}
	if a.OverlapFraction < 0 || a.OverlapFraction >= 1 {
		return invalid("analysis.overlap_fraction must be in [0, 1), got %g", a.OverlapFraction)
	}
	if a.Exponent <= 0 {
		return invalid("analysis.exponent must be positive, got %g", a.Exponent)
	}
	if a.Scale <= 0 {
		return invalid("analysis.scale must be positive, got %g", a.Scale)
	}
	if a.DecayTime <= 0 {
		return invalid("analysis.decay_time must be positive, got %g", a.DecayTime)
	}
	if a.DecayEpsilon < 0 {
		return invalid("analysis.decay_epsilon must not be negative, got %g", a.DecayEpsilon)
	}
	if a.NumChannels < 1 {
		return invalid("analysis.num_channels must be at least 1, got %d", a.NumChannels)
	}
	if a.Split && (a.NumChannels < 2 || a.NumChannels%2 != 0) {
		return invalid("analysis.num_channels must be even when split, got %d", a.NumChannels)
	}
	if a.MaxFrequency <= 0 || a.MaxFrequency > sampleRate/2 {
		return invalid("analysis.max_frequency %g outside (0, %g]", a.MaxFrequency, sampleRate/2)
	}
	if int(a.MaxFrequency/(sampleRate/float64(a.FFTSize))) < 1 {
		return invalid("analysis.max_frequency %g is below one FFT bin (%.2f Hz)", a.MaxFrequency, sampleRate/float64(a.FFTSize))
	}
	if a.AGCEnabled || a.PreAGC {
		if a.AGCWindowLength < 1 {
			return invalid("analysis.agc_window_length must be at least 1, got %d", a.AGCWindowLength)
		}
	}
	if a.AGCEnabled {
		if a.AGCTarget <= 0 {
			return invalid("analysis.agc_target must be positive, got %g", a.AGCTarget)
		}
		if a.AGCBase <= 0 {
			return invalid("analysis.agc_base must be positive, got %g", a.AGCBase)
		}
	}
	if a.PreAGC && a.PreAGCTarget <= 0 {
		return invalid("analysis.pre_agc_target must be positive, got %g", a.PreAGCTarget)
	}
	if a.BoomCount < 0 || a.BoomCount > a.FFTSize/2 {
		return invalid("analysis.boom_count %d outside [0, %d]", a.BoomCount, a.FFTSize/2)
	}
	if a.ThinkTime <= 0 {
		return invalid("analysis.think_time must be positive, got %s", a.ThinkTime)
	}
	if a.SampleQueue < 0 || a.FrameQueue < 0 {
		return invalid("queue capacities must not be negative")
	}
	return nil
}

// applyEnvOverrides applies LEDVIZ_* environment variables on top of the
// file (or defaults). Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// LEDVIZ_DEBUG
	if val, ok := os.LookupEnv("LEDVIZ_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// LEDVIZ_LOG_LEVEL
	if val, ok := os.LookupEnv("LEDVIZ_LOG_LEVEL"); ok && val != "" {
		cfg.LogLevel = val
	}
	// LEDVIZ_FFT_SIZE
	if val, ok := os.LookupEnv("LEDVIZ_FFT_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Analysis.FFTSize = n
		}
	}
	// LEDVIZ_SERIAL_DEVICE
	if val, ok := os.LookupEnv("LEDVIZ_SERIAL_DEVICE"); ok {
		cfg.Output.SerialDevice = val
	}

	// LEDVIZ_UDP_{...}
	// These are specific to the transport layer.

	// LEDVIZ_UDP_ENABLED
	if val, ok := os.LookupEnv("LEDVIZ_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	// LEDVIZ_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("LEDVIZ_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	// LEDVIZ_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("LEDVIZ_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPMinInterval = dur
		}
	}
	// LEDVIZ_WS_ADDRESS
	if val, ok := os.LookupEnv("LEDVIZ_WS_ADDRESS"); ok && val != "" {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = val
	}
}

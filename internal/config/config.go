// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the visualizer. Analysis defaults follow the hardware the pipeline
// was tuned on: an 82 channel strip refreshed at ~30Hz.
const (
	// Audio source defaults.
	DefaultSource          = SourceDevice
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultInputChannels   = 2           // Stereo loopback

	// Analysis defaults.
	DefaultFFTSize         = 1536
	DefaultWindow          = "Nuttall"
	DefaultTransform       = "gonum"
	DefaultDecayTime       = 0.04  // Seconds
	DefaultDecayEpsilon    = 0.005 // Smoothed values below this snap to zero
	DefaultMaxFrequency    = 4800  // Hz
	DefaultNumChannels     = 82
	DefaultOverlapFraction = 0.5
	DefaultExponent        = 1.0
	DefaultScale           = 1.0
	DefaultAGCTarget       = 0.6
	DefaultAGCWindowLength = 32
	DefaultAGCBase         = 12
	DefaultAGCEqualizer    = 0.1
	DefaultPreAGCTarget    = 0.5
	DefaultBoomCount       = 4
	DefaultThinkTime       = 33 * time.Millisecond

	// Output defaults.
	DefaultColor        = "B900FF"
	DefaultColorMode    = "flat"
	DefaultAccentLength = 50
	DefaultBaudRate     = 500000

	// Transport defaults.
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultWebSocketAddress = ":8080"

	// Hardware and processing limits.
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinFFTSize    = 16
	MaxFFTSize    = 1 << 16
)

// Audio source kinds.
const (
	SourceDevice = "device" // PortAudio input/loopback device
	SourceFile   = "file"   // Decoded audio file played in real time
	SourceSynth  = "synth"  // Built-in tone generator, no hardware needed
)

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			LowLatency:      false,
		},
		Analysis: AnalysisConfig{
			FFTSize:         DefaultFFTSize,
			Window:          DefaultWindow,
			Transform:       DefaultTransform,
			DecayTime:       DefaultDecayTime,
			DecayEpsilon:    DefaultDecayEpsilon,
			MaxFrequency:    DefaultMaxFrequency,
			NumChannels:     DefaultNumChannels,
			OverlapFraction: DefaultOverlapFraction,
			Exponent:        DefaultExponent,
			Scale:           DefaultScale,
			AGCEnabled:      true,
			AGCTarget:       DefaultAGCTarget,
			AGCWindowLength: DefaultAGCWindowLength,
			AGCBase:         DefaultAGCBase,
			AGCEqualizer:    DefaultAGCEqualizer,
			PreAGC:          false,
			PreAGCTarget:    DefaultPreAGCTarget,
			BoomCount:       DefaultBoomCount,
			ThinkTime:       DefaultThinkTime,
		},
		Output: OutputConfig{
			Color:        DefaultColor,
			ColorMode:    DefaultColorMode,
			AccentLength: DefaultAccentLength,
			BaudRate:     DefaultBaudRate,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPMinInterval:   16 * time.Millisecond,
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

// SampleQueueCapacity returns the sample queue size: configured, or about
// two analysis windows worth of stereo pairs.
func (a AnalysisConfig) SampleQueueCapacity() int {
	if a.SampleQueue > 0 {
		return a.SampleQueue
	}
	return a.FFTSize * 2
}

// SideChannels returns the channels produced per analysed side: half of
// NumChannels when split, all of them otherwise.
func (a AnalysisConfig) SideChannels() int {
	if a.Split {
		return a.NumChannels / 2
	}
	return a.NumChannels
}

// FrameQueueCapacity returns the frame queue size: configured, or a
// handful of frames so a stalled sink never holds more than ~0.3s.
func (a AnalysisConfig) FrameQueueCapacity() int {
	if a.FrameQueue > 0 {
		return a.FrameQueue
	}
	return 10
}

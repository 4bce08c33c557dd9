// SPDX-License-Identifier: MIT
/*
Package audio implements the capture side of the visualizer:
- PortAudio input streams with loopback aware device selection
- File playback (WAV, MP3, Ogg Vorbis, FLAC) paced to real time
- A deterministic synthesizer for demos and tests
- Noise gate with branchless implementation
- WAV recording with atomic state management

Every source is a Producer: it pushes stereo sample pairs into a bounded,
lossy queue and never blocks on the consumer.

Thread Safety:
- Uses atomic operations for state shared with the PortAudio callback
- Pre-allocates buffers to avoid GC in hot path
*/
package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ledviz/internal/config"
	"ledviz/internal/log"
	"ledviz/internal/queue"
	"ledviz/internal/sample"

	"github.com/gordonklaus/portaudio"
)

// int32Scale maps full scale int32 PCM onto [-1, 1).
const int32Scale = 1.0 / 2147483648.0

// Engine captures from a PortAudio input device.
type Engine struct {
	// Core configuration and state.
	config   config.AudioConfig
	channels int

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	out     atomic.Pointer[queue.Queue[sample.Pair]]
	pushed  atomic.Uint64
	dropped atomic.Uint64
	gated   atomic.Uint64

	// Noise gate for signal conditioning.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Int32 // Absolute amplitude threshold (0-2147483647)

	// Set while recording; the callback writes through it.
	recorder atomic.Pointer[wavRecorder]
}

// NewEngine resolves the configured input device. PortAudio must already
// be initialized.
func NewEngine(cfg config.AudioConfig) (*Engine, error) {
	var (
		inputDevice *portaudio.DeviceInfo
		err         error
	)
	if cfg.DeviceName != "" {
		inputDevice, err = FindDevice(cfg.DeviceName)
	} else {
		inputDevice, err = InputDevice(cfg.InputDevice)
	}
	if err != nil {
		return nil, err
	}

	return newEngine(cfg, inputDevice), nil
}

func newEngine(cfg config.AudioConfig, inputDevice *portaudio.DeviceInfo) *Engine {
	channels := max(min(cfg.InputChannels, inputDevice.MaxInputChannels), 1)

	engine := &Engine{
		config:      cfg,
		channels:    channels,
		inputBuffer: make([]int32, cfg.FramesPerBuffer*channels),
		inputDevice: inputDevice,
	}

	if cfg.GateThreshold > 0 {
		engine.SetGateThreshold(cfg.GateThreshold)
		engine.EnableGate()
	}

	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return engine
}

// SampleRate returns the requested capture rate.
func (e *Engine) SampleRate() float64 { return e.config.SampleRate }

// Channels returns the number of captured channels (1 or 2).
func (e *Engine) Channels() int { return e.channels }

// Device returns the selected input device.
func (e *Engine) Device() *portaudio.DeviceInfo { return e.inputDevice }

// Dropped returns the number of pairs the sample queue refused.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Run streams captured pairs into out until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, out *queue.Queue[sample.Pair]) error {
	e.out.Store(out)
	if err := e.StartInputStream(); err != nil {
		return fmt.Errorf("start input stream on %q: %w", e.inputDevice.Name, err)
	}

	log.WithFields(log.Fields{
		"device":      e.inputDevice.Name,
		"channels":    e.channels,
		"sample_rate": e.config.SampleRate,
		"latency":     e.inputLatency,
	}).Info("Audio capture started")

	<-ctx.Done()

	if err := e.StopInputStream(); err != nil {
		return fmt.Errorf("stop input stream: %w", err)
	}
	log.Debugf("Audio capture stopped: pushed=%d dropped=%d gated=%d",
		e.pushed.Load(), e.dropped.Load(), e.gated.Load())
	return nil
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Uses pre-allocated buffers only
// - Never blocks on the sample queue
func (e *Engine) processInputStream(in []int32) {
	n := copy(e.inputBuffer, in)
	buffer := e.inputBuffer[:n]

	if rec := e.recorder.Load(); rec != nil {
		if err := rec.write(buffer); err != nil {
			log.Errorf("Error writing to WAV file: %v", err)
		}
	}

	e.processBuffer(buffer)
}

// processBuffer converts interleaved PCM into pairs and hands them to the
// sample queue. A closed gate substitutes silence so downstream timing
// and decay keep running.
func (e *Engine) processBuffer(buffer []int32) {
	out := e.out.Load()
	if out == nil {
		return
	}

	open := e.gateOpen(buffer)
	if !open {
		e.gated.Add(1)
	}

	step := e.channels
	for i := 0; i+step <= len(buffer); i += step {
		var p sample.Pair
		if open {
			p.L = float32(float64(buffer[i]) * int32Scale)
			if step > 1 {
				p.R = float32(float64(buffer[i+1]) * int32Scale)
			} else {
				p.R = p.L
			}
		}
		if out.TryPush(p) {
			e.pushed.Add(1)
		} else {
			e.dropped.Add(1)
		}
	}
}

// Close stops recording and the input stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}

	if err := e.StopInputStream(); err != nil {
		return err
	}

	return nil
}

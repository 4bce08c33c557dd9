// SPDX-License-Identifier: MIT
//
// Package app assembles the visualizer: one producer, the analysis
// pipeline and the sinks, joined by two bounded queues and run as three
// goroutines under a shared context.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ledviz/internal/analysis"
	"ledviz/internal/audio"
	"ledviz/internal/config"
	"ledviz/internal/log"
	"ledviz/internal/queue"
	"ledviz/internal/sample"
	"ledviz/internal/transport"
	"ledviz/internal/transport/udp"
	"ledviz/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// sinkErrorEvery rate limits sink error logging on the consumer.
const sinkErrorEvery = 100

// Option customises an App before its components are built.
type Option func(*App)

// WithProducer replaces the configured audio source.
func WithProducer(p audio.Producer) Option {
	return func(a *App) { a.producer = p }
}

// WithSink adds a sink alongside the configured ones.
func WithSink(t transport.Transport) Option {
	return func(a *App) { a.extra = append(a.extra, t) }
}

// App owns every component of a running visualizer.
type App struct {
	cfg       *config.Config
	producer  audio.Producer
	pipeline  *analysis.Pipeline
	samples   *queue.Queue[sample.Pair]
	frames    *queue.Queue[sample.Frame]
	sinks     *transport.Multi
	extra     []transport.Transport
	portaudio bool
	recording string
	sent      uint64
	sinkErrs  uint64
}

// New builds the producer, pipeline, queues and sinks described by cfg.
// Nothing runs until Run is called. On error every component built so
// far is closed.
func New(cfg *config.Config, opts ...Option) (_ *App, err error) {
	a := &App{cfg: cfg, sinks: transport.NewMulti()}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.producer == nil {
		if cfg.Audio.Source == config.SourceDevice {
			if err := audio.Initialize(); err != nil {
				return nil, err
			}
			a.portaudio = true
		}
		if a.producer, err = audio.NewProducer(cfg.Audio); err != nil {
			return nil, err
		}
	}

	rate := a.producer.SampleRate()
	pcfg, err := analysis.NewConfig(cfg.Analysis, rate)
	if err != nil {
		return nil, fmt.Errorf("analysis at %.0f Hz: %w", rate, err)
	}
	if a.pipeline, err = analysis.NewPipeline(pcfg, nil); err != nil {
		return nil, err
	}

	if a.samples, err = queue.New[sample.Pair](cfg.Analysis.SampleQueueCapacity(), queue.DropNewest); err != nil {
		return nil, err
	}
	if a.frames, err = queue.New[sample.Frame](cfg.Analysis.FrameQueueCapacity(), queue.DropOldest); err != nil {
		return nil, err
	}

	if err := a.startRecording(); err != nil {
		return nil, err
	}
	if err := a.buildSinks(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"source":      cfg.Audio.Source,
		"sample_rate": rate,
		"fft_size":    pcfg.FFTSize,
		"channels":    pcfg.NumChannels,
		"split":       pcfg.Split,
		"update_rate": fmt.Sprintf("%.1f Hz", pcfg.UpdateRate()),
		"sinks":       a.sinks.Len(),
	}).Info("Pipeline ready")
	return a, nil
}

// startRecording records the raw capture when the source is a device.
func (a *App) startRecording() error {
	rc := a.cfg.Recording
	if !rc.Enabled {
		return nil
	}
	engine, ok := a.producer.(*audio.Engine)
	if !ok {
		log.Warnf("Recording is only supported for the device source, ignoring")
		return nil
	}

	name := rc.File
	if name == "" {
		name = "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
	path := name
	if !filepath.IsAbs(name) && rc.OutputDir != "" {
		if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
		path = filepath.Join(rc.OutputDir, name)
	}
	if err := engine.StartRecording(path, rc.BitDepth); err != nil {
		return err
	}
	a.recording = path
	log.Infof("Recording to %s", path)
	return nil
}

func (a *App) buildSinks() error {
	out, tc := a.cfg.Output, a.cfg.Transport
	channels := a.cfg.Analysis.NumChannels

	if out.SerialDevice != "" {
		// Colours follow the channel index within one side.
		palette, err := transport.NewPalette(out.ColorMode, out.Color, a.cfg.Analysis.SideChannels())
		if err != nil {
			return err
		}
		strip, err := transport.OpenAdalight(out.SerialDevice, out.BaudRate, palette, channels, out.AccentLength)
		if err != nil {
			return err
		}
		a.sinks.Add(strip)
		log.Infof("Adalight on %s: %d LEDs", out.SerialDevice, strip.LEDCount())
	}

	if tc.UDPEnabled {
		sender, err := udp.NewSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewPublisher(sender, tc.UDPMinInterval)
		if err != nil {
			sender.Close()
			return err
		}
		a.sinks.Add(pub)
	}

	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddress)
		if err != nil {
			return err
		}
		a.sinks.Add(ws)
		log.Infof("WebSocket frames on ws://%s/ws", ws.Addr())
	}

	if out.LogFrames {
		a.sinks.Add(transport.NewLoggingTransport(1))
	}

	for _, t := range a.extra {
		a.sinks.Add(t)
	}
	return nil
}

// Pipeline returns the analysis pipeline.
func (a *App) Pipeline() *analysis.Pipeline { return a.pipeline }

// Recording returns the path being recorded to, or "" when not recording.
func (a *App) Recording() string { return a.recording }

// Run starts the producer, transformer and consumer and blocks until ctx
// is cancelled, the meter is closed, a worker fails, or a non-looping
// file is played out. Cancellation and end of stream return nil.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Output.Meter {
		a.sinks.Add(tui.NewMeter(a.cfg.Analysis.NumChannels, cancel, tea.WithAltScreen()))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.producer.Run(gctx, a.samples)
		if errors.Is(err, audio.ErrEndOfStream) {
			log.Info("End of audio stream")
			cancel()
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.pipeline.Run(gctx, a.samples, a.frames)
	})

	g.Go(func() error {
		return a.consume(gctx)
	})

	err := g.Wait()
	s := a.pipeline.Stats()
	log.WithFields(log.Fields{
		"cycles":         s.Cycles,
		"overruns":       s.Overruns,
		"frames_sent":    a.sent,
		"samples_lost":   a.samples.Dropped(),
		"frames_dropped": a.frames.Dropped(),
	}).Info("Pipeline stopped")
	return err
}

// consume hands every frame to the sinks. A failing sink is logged and
// never stops the pipeline.
func (a *App) consume(ctx context.Context) error {
	for {
		frame, err := a.frames.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if err := a.sinks.Send(frame); err != nil {
			if a.sinkErrs%sinkErrorEvery == 0 {
				log.WithFields(log.Fields{"seq": frame.Seq, "errors": a.sinkErrs + 1}).Warnf("Sink: %v", err)
			}
			a.sinkErrs++
		}
		a.sent++
	}
}

// Close releases every component. It is safe to call after a failed New.
func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.samples != nil {
		a.samples.Close()
	}
	if a.frames != nil {
		a.frames.Close()
	}
	errs = append(errs, a.sinks.Close())
	if a.portaudio {
		errs = append(errs, audio.Terminate())
		a.portaudio = false
	}
	if a.recording != "" {
		log.Infof("Recording saved to %s", a.recording)
		a.recording = ""
	}
	return errors.Join(errs...)
}

// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledviz/internal/config"
	"ledviz/internal/queue"
	"ledviz/internal/sample"
)

var (
	// ErrEndOfStream is returned by a non-looping file source once the
	// file has been played out.
	ErrEndOfStream = errors.New("end of audio stream")
	// ErrUnsupportedFormat is returned for file extensions no decoder handles.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Producer feeds stereo sample pairs into the pipeline's sample queue.
// Run must never block on a full queue; it returns nil when ctx is
// cancelled.
type Producer interface {
	SampleRate() float64
	Run(ctx context.Context, out *queue.Queue[sample.Pair]) error
	Close() error
}

var (
	_ Producer = (*Engine)(nil)
	_ Producer = (*FileSource)(nil)
	_ Producer = (*SynthSource)(nil)
)

// NewProducer builds the source selected by cfg.Source. The device source
// requires PortAudio to be initialized.
func NewProducer(cfg config.AudioConfig) (Producer, error) {
	switch cfg.Source {
	case config.SourceDevice:
		return NewEngine(cfg)
	case config.SourceFile:
		return OpenFile(cfg.File, cfg.Loop)
	case config.SourceSynth:
		return NewSynthSource(cfg.SampleRate), nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

// paceTick is how often software sources top up the sample queue.
const paceTick = 10 * time.Millisecond

// pace calls fill to produce pairs at rate pairs per second, measured
// against the wall clock, and pushes them into out. It returns nil on
// cancellation or the first error from fill.
func pace(ctx context.Context, rate float64, out *queue.Queue[sample.Pair], fill func([]sample.Pair) (int, error)) error {
	// Four ticks of headroom absorbs scheduler jitter; longer stalls are
	// skipped rather than replayed in a burst.
	buf := make([]sample.Pair, int(rate*paceTick.Seconds())*4+1)

	ticker := time.NewTicker(paceTick)
	defer ticker.Stop()

	start := time.Now()
	var sent int64
	for {
		due := int64(time.Since(start).Seconds()*rate) - sent
		if due > int64(len(buf)) {
			sent += due - int64(len(buf))
			due = int64(len(buf))
		}

		for due > 0 {
			got, err := fill(buf[:due])
			for _, p := range buf[:got] {
				out.TryPush(p)
			}
			sent += int64(got)
			due -= int64(got)
			if err != nil {
				return err
			}
			if got == 0 {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

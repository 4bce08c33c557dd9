// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"math"

	"ledviz/internal/log"
	"ledviz/internal/queue"
	"ledviz/internal/sample"
)

// Tone is one sustained partial of the synthesizer.
type Tone struct {
	Frequency float64 // Hz
	Amplitude float64 // Peak, linear
	Pan       float64 // -1 (left) to 1 (right)
}

// DefaultTones spread energy across the low, mid and high channels.
var DefaultTones = []Tone{
	{Frequency: 110, Amplitude: 0.2, Pan: -0.3},
	{Frequency: 440, Amplitude: 0.15, Pan: 0},
	{Frequency: 1760, Amplitude: 0.1, Pan: 0.3},
}

const (
	kickFrequency = 55.0 // Hz
	kickAmplitude = 0.4
	kickDecay     = 12.0 // Envelope rate, 1/s
)

// SynthSource renders a deterministic test signal: sustained tones with a
// slow tremolo plus a kick drum at a fixed tempo.
type SynthSource struct {
	rate  float64
	tones []Tone
	bpm   float64
	n     int64
}

// NewSynthSource returns a synthesizer at rate using DefaultTones and a
// 120 BPM kick when no tones are given.
func NewSynthSource(rate float64, tones ...Tone) *SynthSource {
	if len(tones) == 0 {
		tones = DefaultTones
	}
	return &SynthSource{rate: rate, tones: tones, bpm: 120}
}

// SetTempo changes the kick tempo; 0 disables the kick.
func (s *SynthSource) SetTempo(bpm float64) { s.bpm = max(bpm, 0) }

func (s *SynthSource) SampleRate() float64 { return s.rate }

// Run renders in real time until ctx is cancelled.
func (s *SynthSource) Run(ctx context.Context, out *queue.Queue[sample.Pair]) error {
	log.WithFields(log.Fields{
		"sample_rate": s.rate,
		"tones":       len(s.tones),
		"bpm":         s.bpm,
	}).Info("Synth source started")

	return pace(ctx, s.rate, out, s.Fill)
}

// Fill renders the next len(dst) pairs. It never fails.
func (s *SynthSource) Fill(dst []sample.Pair) (int, error) {
	for i := range dst {
		t := float64(s.n) / s.rate
		s.n++

		var l, r float64
		for k, tone := range s.tones {
			tremolo := 0.75 + 0.25*math.Sin(2*math.Pi*0.5*t+float64(k))
			v := tone.Amplitude * tremolo * math.Sin(2*math.Pi*tone.Frequency*t)
			l += v * (1 - tone.Pan) / 2
			r += v * (1 + tone.Pan) / 2
		}

		if s.bpm > 0 {
			period := 60 / s.bpm
			since := math.Mod(t, period)
			kick := kickAmplitude * math.Exp(-kickDecay*since) * math.Sin(2*math.Pi*kickFrequency*since)
			l += kick
			r += kick
		}

		dst[i] = sample.Pair{L: float32(l), R: float32(r)}
	}
	return len(dst), nil
}

// Reset restarts the signal from t=0.
func (s *SynthSource) Reset() { s.n = 0 }

func (s *SynthSource) Close() error { return nil }

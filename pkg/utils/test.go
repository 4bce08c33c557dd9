// SPDX-License-Identifier: MIT

// Package utils holds deterministic signal generators and helpers shared
// by tests across the module.
package utils

import (
	"math"
	"sync"

	"ledviz/internal/sample"
)

// MockTransport implements the transport.Transport interface for testing.
// It records every frame it is sent.
type MockTransport struct {
	mu     sync.Mutex
	frames []sample.Frame
	closed bool
}

// Send stores a copy of the frame for later inspection instead of transmitting.
func (m *MockTransport) Send(frame sample.Frame) error {
	frame.Levels = append([]float64(nil), frame.Levels...)
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Frames returns the recorded frames in arrival order.
func (m *MockTransport) Frames() []sample.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sample.Frame(nil), m.frames...)
}

// Last returns the most recent frame, if any.
func (m *MockTransport) Last() (sample.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return sample.Frame{}, false
	}
	return m.frames[len(m.frames)-1], true
}

// Reset discards the recorded frames.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.frames = m.frames[:0]
	m.mu.Unlock()
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics at
// 0.9 of full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency, 0.9 of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// Pairs duplicates a mono signal into stereo pairs.
func Pairs(mono []float32) []sample.Pair {
	out := make([]sample.Pair, len(mono))
	for i, v := range mono {
		out[i] = sample.Pair{L: v, R: v}
	}
	return out
}

// PullFrom returns a non-blocking pull function over pairs. It reports
// false once the slice is exhausted.
func PullFrom(pairs []sample.Pair) func() (sample.Pair, bool) {
	i := 0
	return func() (sample.Pair, bool) {
		if i >= len(pairs) {
			return sample.Pair{}, false
		}
		p := pairs[i]
		i++
		return p, true
	}
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"ledviz/internal/fft"
)

// BinMap aggregates linear FFT bins into a fixed number of channels using
// a power-law boundary schedule. Boundaries are computed once and never
// change.
type BinMap struct {
	bounds []int
}

// NewBinMap computes channel boundaries for an fftSize point transform:
//
//	base  = bin of maxFrequency
//	bound = round(min(base^(i/(channels-1)), N/2-1) + i)
//
// The +i shift keeps neighbouring low channels from landing on the same
// bin. Each boundary is clamped to N/2-1 so the schedule stays inside the
// spectrum; a single channel uses exponent 1.
func NewBinMap(fftSize int, sampleRate, maxFrequency float64, channels int) (*BinMap, error) {
	if fftSize < 4 {
		return nil, fmt.Errorf("%w: fft size %d", ErrInvalidParameter, fftSize)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidParameter, channels)
	}
	if !(sampleRate > 0) || !(maxFrequency > 0) {
		return nil, fmt.Errorf("%w: sample rate %g, max frequency %g", ErrInvalidParameter, sampleRate, maxFrequency)
	}
	base := float64(fft.FrequencyToBin(maxFrequency, fftSize, sampleRate))
	if base < 1 {
		return nil, fmt.Errorf("%w: max frequency %g Hz is below one bin", ErrInvalidParameter, maxFrequency)
	}

	limit := fftSize/2 - 1
	bounds := make([]int, channels)
	for i := range bounds {
		e := 1.0
		if channels > 1 {
			e = float64(i) / float64(channels-1)
		}
		b := math.Min(math.Pow(base, e), float64(limit))
		bound := min(int(math.Round(b+float64(i))), limit)
		if i > 0 && bound < bounds[i-1] {
			bound = bounds[i-1]
		}
		bounds[i] = bound
	}
	return &BinMap{bounds: bounds}, nil
}

// Channels returns the number of output channels.
func (m *BinMap) Channels() int { return len(m.bounds) }

// Boundaries returns a copy of the boundary schedule.
func (m *BinMap) Boundaries() []int {
	return append([]int(nil), m.bounds...)
}

// Process writes one value per channel into out: the mean of in over
// [previous boundary, boundary), at least one bin wide, times scale,
// clamped to [0,1].
func (m *BinMap) Process(in, out []float64, scale float64) {
	b0 := 0
	for i, bin := range m.bounds {
		width := max(bin-b0, 1)
		end := min(b0+width, len(in))

		var sum float64
		for j := b0; j < end; j++ {
			sum += in[j]
		}
		out[i] = clamp(sum/float64(width)*scale, 0, 1)
		b0 = bin
	}
}

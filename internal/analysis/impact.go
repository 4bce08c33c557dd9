// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// Impact derives the accent scalar: the mean of the lowest count energy
// bins, smoothed by its own one channel Decay and clamped to [0,1]. It
// also flags beats, cycles where the smoothed value jumps by more than a
// ratio over the previous cycle while above a threshold.
type Impact struct {
	count int
	decay *Decay

	threshold float64
	minRatio  float64
	last      float64

	in, out [1]float64
}

// Beat detection defaults.
const (
	DefaultBeatThreshold = 0.15
	DefaultBeatRatio     = 1.5
)

// NewImpact returns an impact stage over the lowest count bins. A count of
// zero disables it: Process then always returns 0 and never a beat.
func NewImpact(count int, updateRate, decayTime, epsilon float64) (*Impact, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: boom count %d", ErrInvalidParameter, count)
	}
	m := &Impact{
		count:     count,
		threshold: DefaultBeatThreshold,
		minRatio:  DefaultBeatRatio,
	}
	if count == 0 {
		return m, nil
	}
	d, err := NewDecay(1, updateRate, decayTime, epsilon, 1)
	if err != nil {
		return nil, err
	}
	m.decay = d
	return m, nil
}

// Enabled reports whether the stage produces anything.
func (m *Impact) Enabled() bool { return m.count > 0 }

// Process returns the smoothed impact for the energies of one cycle and
// whether it qualifies as a beat.
func (m *Impact) Process(energies []float64) (float64, bool) {
	if m.count == 0 {
		return 0, false
	}
	n := min(m.count, len(energies))
	var sum float64
	for _, v := range energies[:n] {
		sum += v
	}
	m.in[0] = sum / float64(m.count)
	m.decay.Process(m.in[:], m.out[:], 1)
	cur := m.out[0]

	beat := cur > m.threshold && (m.last == 0 || cur/m.last > m.minRatio)
	m.last = cur
	return cur, beat
}

// Reset clears the smoothing memory.
func (m *Impact) Reset() {
	if m.decay != nil {
		m.decay.Reset()
	}
	m.last = 0
}

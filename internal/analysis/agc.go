// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// peakTracker keeps the most recent peaks in a ring seeded with the
// target, so the first frames are not over-amplified.
type peakTracker struct {
	target float64
	ring   []float64
	pos    int
}

func newPeakTracker(target float64, length int) (peakTracker, error) {
	if length < 1 {
		return peakTracker{}, fmt.Errorf("%w: agc window length %d", ErrInvalidParameter, length)
	}
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return peakTracker{}, fmt.Errorf("%w: agc target %g", ErrInvalidParameter, target)
	}
	t := peakTracker{target: target, ring: make([]float64, length)}
	t.reset()
	return t, nil
}

func (t *peakTracker) reset() {
	for i := range t.ring {
		t.ring[i] = t.target
	}
	t.pos = 0
}

// observe records a peak. Silence is ignored so a pause does not reset
// the tracker.
func (t *peakTracker) observe(peak float64) {
	if !(peak > 0) {
		return
	}
	t.ring[t.pos] = peak
	t.pos = (t.pos + 1) % len(t.ring)
}

func (t *peakTracker) average() float64 {
	var sum float64
	for _, v := range t.ring {
		sum += v
	}
	return sum / float64(len(t.ring))
}

// scaler is target / runningAverage with the denominator held at 1 when
// the average is not positive.
func (t *peakTracker) scaler() float64 {
	avg := t.average()
	if !(avg > 0) {
		avg = 1
	}
	return t.target / avg
}

// SpectralAGC rescales an energy spectrum toward a target peak. The peak
// is measured with a linear per-bin correction that de-emphasises low
// bins: min(x/base + equalizer, 1).
type SpectralAGC struct {
	tracker   peakTracker
	base      float64
	equalizer float64
	gain      float64
}

// NewSpectralAGC returns a spectral gain control tracking the last length
// peaks. target and base must be positive.
func NewSpectralAGC(target float64, length int, base, equalizer float64) (*SpectralAGC, error) {
	tracker, err := newPeakTracker(target, length)
	if err != nil {
		return nil, err
	}
	if base <= 0 {
		return nil, fmt.Errorf("%w: agc base %g", ErrInvalidParameter, base)
	}
	return &SpectralAGC{tracker: tracker, base: base, equalizer: equalizer, gain: 1}, nil
}

// Correction returns the peak weighting of bin x.
func (a *SpectralAGC) Correction(x int) float64 {
	return math.Min(float64(x)/a.base+a.equalizer, 1)
}

// Process finds the corrected peak of in, updates the tracker and writes
// in * scale * target/runningAverage, clamped to [0,1], into out.
// out may alias in.
func (a *SpectralAGC) Process(in, out []float64, scale float64) {
	var peak float64
	for x, v := range in {
		if c := v * a.Correction(x); c > peak {
			peak = c
		}
	}
	a.tracker.observe(peak)

	a.gain = a.tracker.scaler()
	g := a.gain * scale
	for i, v := range in {
		out[i] = clamp(v*g, 0, 1)
	}
}

// Gain returns the scaler applied by the last Process call.
func (a *SpectralAGC) Gain() float64 { return a.gain }

// RunningAverage returns the current average of the tracked peaks.
func (a *SpectralAGC) RunningAverage() float64 { return a.tracker.average() }

// Reset reseeds the tracker with the target.
func (a *SpectralAGC) Reset() {
	a.tracker.reset()
	a.gain = 1
}

// TimeAGC applies the same peak tracking to raw samples, before
// windowing. The peak is the largest absolute sample; output is clamped
// to [-1,1].
type TimeAGC struct {
	tracker peakTracker
	gain    float64
}

// NewTimeAGC returns a time-domain gain control tracking the last length
// peaks.
func NewTimeAGC(target float64, length int) (*TimeAGC, error) {
	tracker, err := newPeakTracker(target, length)
	if err != nil {
		return nil, err
	}
	return &TimeAGC{tracker: tracker, gain: 1}, nil
}

// Process writes in * scale * target/runningAverage into out. out may
// alias in.
func (a *TimeAGC) Process(in, out []float64, scale float64) {
	var peak float64
	for _, v := range in {
		if v = math.Abs(v); v > peak {
			peak = v
		}
	}
	a.tracker.observe(peak)

	a.gain = a.tracker.scaler()
	g := a.gain * scale
	for i, v := range in {
		out[i] = clamp(v*g, -1, 1)
	}
}

// Gain returns the scaler applied by the last Process call.
func (a *TimeAGC) Gain() float64 { return a.gain }

// RunningAverage returns the current average of the tracked peaks.
func (a *TimeAGC) RunningAverage() float64 { return a.tracker.average() }

// Reset reseeds the tracker with the target.
func (a *TimeAGC) Reset() {
	a.tracker.reset()
	a.gain = 1
}

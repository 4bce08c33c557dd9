// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// DecayRate returns the per-update release factor for a decay time in
// seconds at updateRate updates per second.
func DecayRate(decayTime, updateRate float64) float64 {
	return math.Exp(1 / (-decayTime * updateRate))
}

// Decay is a first-order release smoother: values rise instantly with the
// input and fall exponentially. Results below epsilon snap to zero and
// everything is clamped to [0, max].
type Decay struct {
	memory  []float64
	rate    float64
	epsilon float64
	max     float64
}

// NewDecay returns a smoother for channels values updated updateRate
// times per second.
func NewDecay(channels int, updateRate, decayTime, epsilon, max float64) (*Decay, error) {
	switch {
	case channels < 1:
		return nil, fmt.Errorf("%w: decay channels %d", ErrInvalidParameter, channels)
	case !(updateRate > 0):
		return nil, fmt.Errorf("%w: decay update rate %g", ErrInvalidParameter, updateRate)
	case !(decayTime > 0):
		return nil, fmt.Errorf("%w: decay time %g", ErrInvalidParameter, decayTime)
	case epsilon < 0:
		return nil, fmt.Errorf("%w: decay epsilon %g", ErrInvalidParameter, epsilon)
	case !(max > 0):
		return nil, fmt.Errorf("%w: decay max %g", ErrInvalidParameter, max)
	}
	return &Decay{
		memory:  make([]float64, channels),
		rate:    DecayRate(decayTime, updateRate),
		epsilon: epsilon,
		max:     max,
	}, nil
}

// Rate returns the release factor.
func (d *Decay) Rate() float64 { return d.rate }

// Max returns the output ceiling.
func (d *Decay) Max() float64 { return d.max }

// Process smooths in into out. scale is unused. out may alias in.
func (d *Decay) Process(in, out []float64, _ float64) {
	for i, m := range d.memory {
		tmp := d.rate*m + in[i]
		if tmp < d.epsilon {
			tmp = 0
		}
		tmp = clamp(tmp, 0, d.max)
		d.memory[i] = tmp
		out[i] = tmp
	}
}

// Reset clears the smoothing memory.
func (d *Decay) Reset() {
	clear(d.memory)
}

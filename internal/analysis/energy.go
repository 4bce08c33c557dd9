// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Energy converts the first half of a transform output into normalized
// per-bin amplitudes: |X[k]| / (N/2), optionally raised to an exponent.
type Energy struct {
	half     int
	norm     float64
	exponent float64
}

// NewEnergy returns an extractor for an fftSize point transform. An
// exponent above 1 requires a stronger signal to register.
func NewEnergy(fftSize int, exponent float64) (*Energy, error) {
	if fftSize < 2 {
		return nil, fmt.Errorf("%w: fft size %d", ErrInvalidParameter, fftSize)
	}
	if exponent <= 0 || math.IsNaN(exponent) {
		return nil, fmt.Errorf("%w: exponent %g", ErrInvalidParameter, exponent)
	}
	return &Energy{
		half:     fftSize / 2,
		norm:     1 / (float64(fftSize) / 2),
		exponent: exponent,
	}, nil
}

// Bins returns the number of energies produced, N/2.
func (e *Energy) Bins() int { return e.half }

// Extract writes Bins() energies into dst from bins[0:N/2].
func (e *Energy) Extract(dst []float64, bins []complex128) {
	for i := 0; i < e.half; i++ {
		v := cmplx.Abs(bins[i]) * e.norm
		if e.exponent != 1 {
			v = math.Pow(v, e.exponent)
		}
		dst[i] = v
	}
}

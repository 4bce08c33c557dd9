// SPDX-License-Identifier: MIT

/*
Package analysis turns a rolling window of audio samples into a short,
log-scaled, gain-controlled and smoothed intensity vector.

One cycle runs the stages in a fixed order:

	SampleWindow -> [TimeAGC] -> WindowFunction -> fft.Transformer
	  -> Energy -> [SpectralAGC] -> Decay -> BinMap

Every stage owns its persistent state and writes into caller supplied
buffers, so a Pipeline cycle performs no allocation. Stages are not safe
for concurrent use; a Pipeline is driven by exactly one worker.
*/
package analysis

import "errors"

// ErrInvalidParameter is returned by constructors given options the
// stage cannot run with. It is the only error the analysis stages raise.
var ErrInvalidParameter = errors.New("analysis: invalid parameter")

// Processor is the shared contract of the per-cycle stages. Process reads
// in and writes out (which may alias in when the stage allows it); scale
// is an auxiliary gain whose meaning is defined per stage.
type Processor interface {
	Process(in, out []float64, scale float64)
}

// Compile-time checks for interface implementations.
var (
	_ Processor = (*WindowFunction)(nil)
	_ Processor = (*SpectralAGC)(nil)
	_ Processor = (*TimeAGC)(nil)
	_ Processor = (*Decay)(nil)
	_ Processor = (*BinMap)(nil)
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SPDX-License-Identifier: MIT

// Package sample holds the value types exchanged between the pipeline
// workers: stereo input pairs on the way in, output frames on the way out.
package sample

import "time"

// Pair is one stereo sample as delivered by an audio source.
type Pair struct {
	L float32
	R float32
}

// Mono down-mixes the pair.
func (p Pair) Mono() float32 {
	return (p.L + p.R) / 2
}

// Frame is one cycle of pipeline output. Levels holds one normalized
// intensity in [0,1] per output channel; Impact is the optional accent
// scalar (0 when disabled). Beat marks a sharp rise in Impact.
//
// In split stereo mode Levels and Impact describe the left channel and
// LevelsR and ImpactR the right one. LevelsR is nil otherwise.
type Frame struct {
	Seq     uint64
	Time    time.Time
	Levels  []float64
	Impact  float64
	Beat    bool
	LevelsR []float64
	ImpactR float64
}

// Len returns the number of output channels in the frame, per side when
// the frame is split.
func (f Frame) Len() int {
	return len(f.Levels)
}

// Split reports whether the frame carries separate left and right levels.
func (f Frame) Split() bool {
	return f.LevelsR != nil
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"ledviz/internal/sample"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = [...]string{
	BartlettHann:    "BartlettHann",
	Blackman:        "Blackman",
	BlackmanNuttall: "BlackmanNuttall",
	Hann:            "Hann",
	Hamming:         "Hamming",
	Lanczos:         "Lanczos",
	Nuttall:         "Nuttall",
}

func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windowNames[w]
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Nuttall) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "", "nuttall":
		return Nuttall, nil
	default:
		return Nuttall, fmt.Errorf("%w: unknown window function %q", ErrInvalidParameter, name)
	}
}

// applyWindow fills coeffs with the selected taper. The slice is set to
// 1.0 first because gonum's window functions scale in place.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	default:
		// Nuttall: a0 - a1*cos(x) + a2*cos(2x) - a3*cos(3x), x = 2*pi*n/(N-1).
		window.Nuttall(coeffs)
	}
}

// WindowFunction is a precomputed taper of fixed length. It is a pure
// function of its length and type; Apply never mutates it.
type WindowFunction struct {
	kind   WindowFunc
	coeffs []float64
}

// NewWindowFunction precomputes an n point taper.
func NewWindowFunction(n int, kind WindowFunc) (*WindowFunction, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: window length %d", ErrInvalidParameter, n)
	}
	w := &WindowFunction{kind: kind, coeffs: make([]float64, n)}
	applyWindow(w.coeffs, kind)
	return w, nil
}

// Len returns the taper length.
func (w *WindowFunction) Len() int { return len(w.coeffs) }

// Kind returns the taper type.
func (w *WindowFunction) Kind() WindowFunc { return w.kind }

// Coefficient returns the taper value at index n.
func (w *WindowFunction) Coefficient(n int) float64 { return w.coeffs[n] }

// Apply writes the tapered samples into dst as complex values with a zero
// imaginary part. dst must have Len() entries; a short src is zero padded.
func (w *WindowFunction) Apply(dst []complex128, src []float64) {
	n := min(len(src), len(w.coeffs))
	for i := 0; i < n; i++ {
		dst[i] = complex(src[i]*w.coeffs[i], 0)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Process is the real valued form of Apply with an extra gain.
func (w *WindowFunction) Process(in, out []float64, scale float64) {
	n := min(len(in), len(w.coeffs))
	for i := 0; i < n; i++ {
		out[i] = in[i] * w.coeffs[i] * scale
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

// SampleWindow is a fixed capacity ring of mono samples refilled with
// overlap: each Refill drops the oldest samples and tops the ring up from
// the source without waiting.
type SampleWindow struct {
	ring   []float64
	start  int
	length int
	view   []float64
}

// NewSampleWindow returns an empty window holding up to n samples.
func NewSampleWindow(n int) (*SampleWindow, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: sample window length %d", ErrInvalidParameter, n)
	}
	return &SampleWindow{
		ring: make([]float64, n),
		view: make([]float64, n),
	}, nil
}

// Cap returns the window capacity.
func (w *SampleWindow) Cap() int { return len(w.ring) }

// Len returns the number of samples currently held.
func (w *SampleWindow) Len() int { return w.length }

// Full reports whether the window holds Cap() samples.
func (w *SampleWindow) Full() bool { return w.length == len(w.ring) }

// Refill drops min(Len(), drain) of the oldest samples, then pulls pairs,
// down-mixed to mono, until the window is full or pull reports nothing is
// available. Missing samples are not synthesised. The returned slice is a
// contiguous copy of the window contents, oldest first, valid until the
// next Refill.
func (w *SampleWindow) Refill(drain int, pull func() (sample.Pair, bool)) []float64 {
	w.drop(drain)
	for !w.Full() {
		p, ok := pull()
		if !ok {
			break
		}
		w.push(float64(p.Mono()))
	}
	return w.contiguous()
}

// RefillStereo refills two windows of equal capacity in lockstep, left
// from p.L and right from p.R, with the semantics of Refill.
func RefillStereo(left, right *SampleWindow, drain int, pull func() (sample.Pair, bool)) (l, r []float64) {
	left.drop(drain)
	right.drop(drain)
	for !left.Full() && !right.Full() {
		p, ok := pull()
		if !ok {
			break
		}
		left.push(float64(p.L))
		right.push(float64(p.R))
	}
	return left.contiguous(), right.contiguous()
}

func (w *SampleWindow) drop(n int) {
	d := min(max(n, 0), w.length)
	w.start = (w.start + d) % len(w.ring)
	w.length -= d
}

func (w *SampleWindow) push(v float64) {
	w.ring[(w.start+w.length)%len(w.ring)] = v
	w.length++
}

// contiguous copies the ring, which may be split in two physical regions,
// into the view.
func (w *SampleWindow) contiguous() []float64 {
	first := min(w.length, len(w.ring)-w.start)
	copy(w.view, w.ring[w.start:w.start+first])
	copy(w.view[first:], w.ring[:w.length-first])
	return w.view[:w.length]
}

// Reset empties the window.
func (w *SampleWindow) Reset() {
	w.start, w.length = 0, 0
}

// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"strings"

	"ledviz/pkg/bitint"

	godsp "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrSize is returned for transform lengths the backends cannot serve.
var ErrSize = errors.New("fft: invalid transform size")

// Backend names accepted by New.
const (
	BackendGonum = "gonum"
	BackendGoDSP = "godsp"
)

// Transformer computes the forward complex DFT of a fixed length sequence.
// Transform writes the N coefficients of src into dst (which may alias src)
// and returns dst. Both slices must have length Size().
type Transformer interface {
	Transform(dst, src []complex128) []complex128
	Size() int
	Name() string
}

// New returns the transform backend registered under name.
func New(name string, n int) (Transformer, error) {
	switch strings.ToLower(name) {
	case "", BackendGonum:
		return NewGonum(n)
	case BackendGoDSP:
		return NewGoDSP(n)
	default:
		return nil, fmt.Errorf("fft: unknown backend %q", name)
	}
}

// Gonum wraps gonum's mixed radix complex FFT. Work buffers are owned by the
// plan so Transform does not allocate.
type Gonum struct {
	n    int
	plan *fourier.CmplxFFT
}

func NewGonum(n int) (*Gonum, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrSize, n)
	}
	return &Gonum{n: n, plan: fourier.NewCmplxFFT(n)}, nil
}

func (g *Gonum) Transform(dst, src []complex128) []complex128 {
	return g.plan.Coefficients(dst, src)
}

func (g *Gonum) Size() int    { return g.n }
func (g *Gonum) Name() string { return BackendGonum }

// GoDSP wraps github.com/mjibson/go-dsp. The library returns a fresh slice
// per call, so this backend allocates once per transform.
type GoDSP struct {
	n int
}

func NewGoDSP(n int) (*GoDSP, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrSize, n)
	}
	return &GoDSP{n: n}, nil
}

func (g *GoDSP) Transform(dst, src []complex128) []complex128 {
	if len(src) != g.n {
		panic("fft: source length mismatch")
	}
	out := godsp.FFT(src)
	if dst == nil {
		return out
	}
	copy(dst, out)
	return dst
}

func (g *GoDSP) Size() int    { return g.n }
func (g *GoDSP) Name() string { return BackendGoDSP }

// BinFrequency returns the centre frequency in Hz of bin i for an n point
// transform at sampleRate.
func BinFrequency(i, n int, sampleRate float64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(i) * sampleRate / float64(n)
}

// FrequencyToBin returns the bin holding frequency f, truncating toward zero.
func FrequencyToBin(f float64, n int, sampleRate float64) int {
	if sampleRate <= 0 || n <= 0 {
		return 0
	}
	return int(f / (sampleRate / float64(n)))
}

// FastSize reports whether n is a power of two, the size every backend
// handles without falling back to a slower general radix path.
func FastSize(n int) bool {
	return bitint.IsPowerOfTwo(n)
}

// NextFastSize returns the smallest fast size >= n.
func NextFastSize(n int) int {
	return bitint.NextPowerOfTwo(n)
}

// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func sine(n int, freq, rate float64) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(math.Sin(2*math.Pi*freq*float64(i)/rate), 0)
	}
	return out
}

func peakBin(bins []complex128) int {
	peak, idx := 0.0, 0
	for i := 0; i < len(bins)/2; i++ {
		if m := cmplx.Abs(bins[i]); m > peak {
			peak, idx = m, i
		}
	}
	return idx
}

func TestBackendsFindSinePeak(t *testing.T) {
	tests := []struct {
		backend string
		n       int
	}{
		{BackendGonum, 1024},
		{BackendGonum, 1536}, // non power of two
		{BackendGoDSP, 1024},
		{BackendGoDSP, 1536},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			tr, err := New(tt.backend, tt.n)
			if err != nil {
				t.Fatalf("New(%q, %d): %v", tt.backend, tt.n, err)
			}
			if tr.Size() != tt.n || tr.Name() != tt.backend {
				t.Fatalf("got size %d name %q", tr.Size(), tr.Name())
			}

			// A tone centred exactly on bin 40.
			freq := BinFrequency(40, tt.n, testSampleRate)
			src := sine(tt.n, freq, testSampleRate)
			dst := make([]complex128, tt.n)
			tr.Transform(dst, src)

			if got := peakBin(dst); got != 40 {
				t.Errorf("peak bin = %d, want 40", got)
			}
			// A full scale sine of length N peaks at N/2.
			if got := cmplx.Abs(dst[40]); math.Abs(got-float64(tt.n)/2) > 1e-6*float64(tt.n) {
				t.Errorf("|X[40]| = %g, want %g", got, float64(tt.n)/2)
			}
		})
	}
}

func TestBackendsAgree(t *testing.T) {
	src := make([]complex128, 48)
	for i := range src {
		src[i] = complex(float64(i%7)-3, 0)
	}
	g, _ := NewGonum(len(src))
	d, _ := NewGoDSP(len(src))

	a := g.Transform(nil, src)
	b := d.Transform(make([]complex128, len(src)), src)
	for i := range a {
		if cmplx.Abs(a[i]-b[i]) > 1e-9 {
			t.Fatalf("bin %d: gonum %v, go-dsp %v", i, a[i], b[i])
		}
	}
}

func TestImpulseIsFlat(t *testing.T) {
	tr, _ := NewGonum(8)
	src := make([]complex128, 8)
	src[0] = 1
	tr.Transform(src, src) // in place

	for i, c := range src {
		if math.Abs(cmplx.Abs(c)-1) > 1e-12 {
			t.Errorf("bin %d magnitude = %g, want 1", i, cmplx.Abs(c))
		}
	}
}

func TestNewRejects(t *testing.T) {
	if _, err := New("fftw", 64); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := New(BackendGonum, 1); !errors.Is(err, ErrSize) {
		t.Errorf("expected ErrSize, got %v", err)
	}
	if _, err := New(BackendGoDSP, 0); !errors.Is(err, ErrSize) {
		t.Errorf("expected ErrSize, got %v", err)
	}
}

func TestFrequencyToBin(t *testing.T) {
	tests := []struct {
		freq float64
		n    int
		rate float64
		want int
	}{
		{0, 1024, 44100, 0},
		{43.06, 1024, 44100, 0},   // just below one bin width truncates
		{86.2, 1024, 44100, 2},    // 2.0016 bins
		{8000, 1536, 44100, 278},  // 278.6 truncates
		{22050, 1024, 44100, 512}, // Nyquist
		{1000, 1024, 0, 0},        // degenerate rate
	}
	for _, tt := range tests {
		if got := FrequencyToBin(tt.freq, tt.n, tt.rate); got != tt.want {
			t.Errorf("FrequencyToBin(%g, %d, %g) = %d, want %d", tt.freq, tt.n, tt.rate, got, tt.want)
		}
	}
}

func TestBinFrequency(t *testing.T) {
	if got := BinFrequency(512, 1024, 44100); got != 22050 {
		t.Errorf("BinFrequency(512) = %g, want 22050", got)
	}
	if got := BinFrequency(3, 0, 44100); got != 0 {
		t.Errorf("BinFrequency with n=0 = %g, want 0", got)
	}
}

func TestFastSize(t *testing.T) {
	if !FastSize(1024) || FastSize(1536) {
		t.Error("FastSize misclassified 1024 or 1536")
	}
	if got := NextFastSize(1536); got != 2048 {
		t.Errorf("NextFastSize(1536) = %d, want 2048", got)
	}
}

func TestGonumHotPath(t *testing.T) {
	tr, _ := NewGonum(testFFTSize)
	src := sine(testFFTSize, 440, testSampleRate)
	dst := make([]complex128, testFFTSize)

	// Warm-up call (potential initial allocations).
	tr.Transform(dst, src)
	allocs := testing.AllocsPerRun(100, func() {
		tr.Transform(dst, src)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in gonum Transform hot path, got %.1f", allocs)
	}
}

func benchmarkBackend(b *testing.B, name string) {
	tr, err := New(name, testFFTSize)
	if err != nil {
		b.Fatal(err)
	}
	src := make([]complex128, testFFTSize)

	// Fundamental at 440Hz plus harmonics.
	for i := range src {
		tm := float64(i) / testSampleRate
		src[i] = complex(math.Sin(2*math.Pi*440*tm)*0.5+
			math.Sin(2*math.Pi*880*tm)*0.3+
			math.Sin(2*math.Pi*1320*tm)*0.2, 0)
	}
	dst := make([]complex128, testFFTSize)

	b.ReportAllocs()

	for b.Loop() {
		tr.Transform(dst, src)
	}
}

func BenchmarkGonum(b *testing.B) { benchmarkBackend(b, BackendGonum) }
func BenchmarkGoDSP(b *testing.B) { benchmarkBackend(b, BackendGoDSP) }

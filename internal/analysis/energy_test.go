// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestEnergyExtract(t *testing.T) {
	tests := []struct {
		name     string
		exponent float64
		bins     []complex128
		want     []float64
	}{
		{
			name:     "linear",
			exponent: 1,
			bins:     []complex128{4, complex(0, 2), complex(3, 4), 0, 9, 9, 9, 9},
			want:     []float64{1, 0.5, 1.25, 0},
		},
		{
			name:     "squared",
			exponent: 2,
			bins:     []complex128{4, 2, complex(3, 4), 0, 9, 9, 9, 9},
			want:     []float64{1, 0.25, 1.5625, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEnergy(len(tt.bins), tt.exponent)
			if err != nil {
				t.Fatal(err)
			}
			if e.Bins() != len(tt.bins)/2 {
				t.Fatalf("Bins() = %d, want %d", e.Bins(), len(tt.bins)/2)
			}
			dst := make([]float64, e.Bins())
			e.Extract(dst, tt.bins)
			for i := range tt.want {
				if math.Abs(dst[i]-tt.want[i]) > 1e-12 {
					t.Errorf("energy[%d] = %g, want %g", i, dst[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewEnergyRejects(t *testing.T) {
	for _, tc := range []struct {
		size int
		exp  float64
	}{{1, 1}, {8, 0}, {8, -1}, {8, math.NaN()}} {
		if _, err := NewEnergy(tc.size, tc.exp); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("NewEnergy(%d, %g) error = %v, want ErrInvalidParameter", tc.size, tc.exp, err)
		}
	}
}

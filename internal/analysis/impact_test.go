// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestImpactDisabled(t *testing.T) {
	m, err := NewImpact(0, testUpdateRate, 0.04, 0.005)
	if err != nil {
		t.Fatal(err)
	}
	if m.Enabled() {
		t.Error("Enabled() = true for boom count 0")
	}
	v, beat := m.Process([]float64{1, 1, 1})
	if v != 0 || beat {
		t.Errorf("Process() = %g, %v; want 0, false", v, beat)
	}
}

func TestImpactAveragesLowestBins(t *testing.T) {
	m, _ := NewImpact(2, testUpdateRate, 0.04, 0.005)
	energies := []float64{0.4, 0.6, 1, 1, 1}

	v, beat := m.Process(energies)
	if math.Abs(v-0.5) > 1e-12 {
		t.Errorf("first cycle = %g, want 0.5", v)
	}
	if !beat {
		t.Error("onset from silence should be a beat")
	}

	// Held input accumulates to the clamp and stops reporting beats.
	for range 20 {
		v, beat = m.Process(energies)
	}
	if v != 1 {
		t.Errorf("held impact = %g, want 1", v)
	}
	if beat {
		t.Error("steady impact reported a beat")
	}

	m.Reset()
	if v, _ := m.Process(make([]float64, 5)); v != 0 {
		t.Errorf("after Reset silence gave %g", v)
	}
}

func TestImpactQuietIsNoBeat(t *testing.T) {
	m, _ := NewImpact(4, testUpdateRate, 0.04, 0.005)
	if _, beat := m.Process([]float64{0.05, 0.05, 0.05, 0.05}); beat {
		t.Error("impact below threshold reported a beat")
	}
}

func TestNewImpactRejects(t *testing.T) {
	if _, err := NewImpact(-1, testUpdateRate, 0.04, 0.005); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := NewImpact(4, testUpdateRate, 0, 0.005); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ledviz/internal/sample"

	tea "github.com/charmbracelet/bubbletea"
)

func TestCell(t *testing.T) {
	tests := []struct {
		v      float64
		row    int
		height int
		want   rune
	}{
		{0, 0, 4, ' '},
		{1, 3, 4, '█'},
		{0.5, 0, 4, '█'},
		{0.5, 1, 4, '█'},
		{0.5, 2, 4, ' '},
		{0.25 + 1.0/32, 1, 4, '▁'},
		{-1, 0, 4, ' '},
		{2, 3, 4, '█'},
	}
	for _, tt := range tests {
		if got := cell(tt.v, tt.row, tt.height); got != tt.want {
			t.Errorf("cell(%v, %d, %d) = %q, want %q", tt.v, tt.row, tt.height, got, tt.want)
		}
	}
}

func TestMeterModelChasesFrame(t *testing.T) {
	var latest atomic.Pointer[sample.Frame]
	m := NewMeterModel(3, &latest)
	latest.Store(&sample.Frame{Seq: 1, Levels: []float64{1, 0.5, 0}, Impact: 1, Beat: true})

	var model tea.Model = m
	for range 3 * meterFPS {
		model, _ = model.Update(tickMsg(time.Now()))
	}
	got := model.(MeterModel)

	want := []float64{1, 0.5, 0}
	for i, w := range want {
		if math.Abs(got.bars[i].pos-w) > 0.01 {
			t.Errorf("bar %d settled at %.3f, want %.3f", i, got.bars[i].pos, w)
		}
	}
	if math.Abs(got.accent.pos-1) > 0.01 {
		t.Errorf("accent settled at %.3f, want 1", got.accent.pos)
	}
	if got.beat != 0 {
		t.Errorf("beat marker still showing after %d ticks", 3*meterFPS)
	}
}

func TestBarTarget(t *testing.T) {
	mono := sample.Frame{Levels: []float64{0.1, 0.2, 0.3}}
	split := sample.Frame{Levels: []float64{0.1, 0.2}, LevelsR: []float64{0.3, 0.4}}
	tests := []struct {
		name  string
		frame sample.Frame
		want  []float64
	}{
		{"mono in order", mono, []float64{0.1, 0.2, 0.3, 0}},
		{"split bass in the middle", split, []float64{0.2, 0.1, 0.3, 0.4}},
		{"empty", sample.Frame{}, []float64{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		for i, want := range tt.want {
			if got := barTarget(tt.frame, i); got != want {
				t.Errorf("%s: barTarget(%d) = %g, want %g", tt.name, i, got, want)
			}
		}
	}
}

func TestMeterModelBeatMarker(t *testing.T) {
	var latest atomic.Pointer[sample.Frame]
	m := NewMeterModel(1, &latest)
	latest.Store(&sample.Frame{Seq: 9, Levels: []float64{1}, Beat: true})

	model, _ := m.Update(tickMsg(time.Now()))
	if model.(MeterModel).beat == 0 {
		t.Fatal("beat marker should show after a beat frame")
	}
	if !strings.Contains(model.View(), "●") {
		t.Error("View() should render the beat marker")
	}
}

func TestMeterModelViewSize(t *testing.T) {
	var latest atomic.Pointer[sample.Frame]
	m := NewMeterModel(82, &latest)

	model, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 13})
	view := model.View()
	lines := strings.Split(view, "\n")

	// impact line + 10 bar rows + help
	if len(lines) != 12 {
		t.Errorf("View() has %d lines, want 12", len(lines))
	}
}

func TestMeterModelQuit(t *testing.T) {
	var latest atomic.Pointer[sample.Frame]
	m := NewMeterModel(1, &latest)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.QuitMsg")
	}
}

func TestMeterSendStoresLatest(t *testing.T) {
	m := &Meter{}
	for i := range 3 {
		m.Send(sample.Frame{Seq: uint64(i), Levels: []float64{float64(i)}})
	}
	if f := m.latest.Load(); f == nil || f.Seq != 2 {
		t.Errorf("latest = %+v, want seq 2", f)
	}
}

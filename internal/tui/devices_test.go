// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"ledviz/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Monitor of Speakers", MaxInputChannels: 2, DefaultSampleRate: 48000, Loopback: true},
	{ID: 2, Name: "Odd Mic", MaxInputChannels: 1, DefaultSampleRate: 32000},
}

var keyTypes = map[string]tea.KeyType{
	"enter": tea.KeyEnter,
	"esc":   tea.KeyEsc,
	"down":  tea.KeyDown,
	"up":    tea.KeyUp,
}

// press feeds keys to b and returns the model with the last command.
func press(b Browser, keys ...string) (Browser, tea.Cmd) {
	var model tea.Model = b
	var cmd tea.Cmd
	for _, k := range keys {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		if kt, ok := keyTypes[k]; ok {
			msg = tea.KeyMsg{Type: kt}
		}
		model, cmd = model.Update(msg)
	}
	return model.(Browser), cmd
}

func loadedBrowser(t *testing.T, load func() ([]audio.Device, error)) Browser {
	t.Helper()
	b := NewBrowser(load)
	var model tea.Model = b
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	model, _ = model.Update(b.Init()())
	return model.(Browser)
}

func fixedDevices() ([]audio.Device, error) { return testDevices, nil }

func TestBrowserListsDevices(t *testing.T) {
	view := loadedBrowser(t, fixedDevices).View()
	for _, want := range []string{"Audio Device List", "Monitor of Speakers (Input, loopback)", "[2] Odd Mic"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestBrowserCursorClamps(t *testing.T) {
	b, _ := press(loadedBrowser(t, fixedDevices), "up")
	if b.cursor != 0 {
		t.Errorf("cursor = %d after up at top, want 0", b.cursor)
	}
	b, _ = press(b, "down", "j", "down", "down")
	if b.cursor != len(testDevices)-1 {
		t.Errorf("cursor = %d, want %d", b.cursor, len(testDevices)-1)
	}
}

func TestBrowserSkipsOutputOnlyDevices(t *testing.T) {
	b, _ := press(loadedBrowser(t, fixedDevices), "enter")
	if b.stage != stageDevices {
		t.Error("an output-only device opened the rate stage")
	}
}

func TestBrowserPicksDeviceAndRate(t *testing.T) {
	b, _ := press(loadedBrowser(t, fixedDevices), "down", "down", "enter")
	if b.stage != stageRates {
		t.Fatal("enter did not open the rate stage")
	}
	// 32000 is not a standard rate; it is offered and preselected.
	if b.rates[0] != 32000 || b.rateCursor != 0 {
		t.Fatalf("rates = %v, cursor = %d", b.rates, b.rateCursor)
	}
	if !strings.Contains(b.View(), "Configure Device: Odd Mic") {
		t.Error("rate stage does not name the device")
	}

	b, cmd := press(b, "down", "s")
	sel := b.Selection()
	if sel == nil || sel.DeviceID != 2 || sel.SampleRate != 44100 {
		t.Fatalf("Selection() = %+v, want device 2 at 44100", sel)
	}
	if cmd == nil {
		t.Fatal("picking a rate did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("picking a rate did not produce tea.QuitMsg")
	}
}

func TestBrowserEscLeavesRates(t *testing.T) {
	b, _ := press(loadedBrowser(t, fixedDevices), "down", "enter", "esc")
	if b.stage != stageDevices {
		t.Error("esc did not return to the device list")
	}
	if b.Selection() != nil {
		t.Error("esc selected a device")
	}
}

func TestBrowserLoadError(t *testing.T) {
	b := loadedBrowser(t, func() ([]audio.Device, error) { return nil, errors.New("no backend") })
	if !strings.Contains(b.View(), "no backend") {
		t.Errorf("View() = %q, want the load error", b.View())
	}
}

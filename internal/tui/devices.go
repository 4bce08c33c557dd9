// SPDX-License-Identifier: MIT

// Package tui holds the terminal interfaces: an interactive device browser
// and a live channel meter that doubles as an output sink.
package tui

import (
	"fmt"
	"slices"
	"strings"

	"ledviz/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
)

// browserKeys are shared by both stages of the browser.
var browserKeys = struct {
	quit, prev, next, open, back, pick key.Binding
}{
	quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
	prev: key.NewBinding(key.WithKeys("up", "k")),
	next: key.NewBinding(key.WithKeys("down", "j")),
	open: key.NewBinding(key.WithKeys("enter")),
	back: key.NewBinding(key.WithKeys("esc")),
	pick: key.NewBinding(key.WithKeys("s", "enter")),
}

// standardRates are offered for every capture device, plus its own default.
var standardRates = []float64{44100, 48000, 88200, 96000}

type stage int

const (
	stageDevices stage = iota
	stageRates
)

// chromeLines is the height taken by the header and the help line.
const chromeLines = 4

// Selection is the device and rate chosen in the browser.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
}

type devicesLoaded struct {
	devices []audio.Device
	err     error
}

// Browser is a two stage bubbletea model: pick a capture device, then pick
// the rate to run it at.
type Browser struct {
	load    func() ([]audio.Device, error)
	devices []audio.Device
	err     error

	stage      stage
	cursor     int
	rates      []float64
	rateCursor int
	chosen     *Selection

	vp    viewport.Model
	sized bool
}

// NewBrowser returns a browser that lists the devices returned by load.
func NewBrowser(load func() ([]audio.Device, error)) Browser {
	return Browser{load: load}
}

func (b Browser) Init() tea.Cmd {
	load := b.load
	return func() tea.Msg {
		devices, err := load()
		return devicesLoaded{devices, err}
	}
}

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if b.sized {
			b.vp.Width, b.vp.Height = msg.Width, msg.Height-chromeLines
		} else {
			b.vp = viewport.New(msg.Width, msg.Height-chromeLines)
			b.sized = true
		}
	case devicesLoaded:
		b.devices, b.err = msg.devices, msg.err
	case tea.KeyMsg:
		if key.Matches(msg, browserKeys.quit) {
			return b, tea.Quit
		}
		if b.stage == stageDevices {
			b.onDeviceKey(msg)
		} else if done := b.onRateKey(msg); done {
			return b, tea.Quit
		}
	}

	if b.sized {
		b.vp.SetContent(b.body())
	}
	var cmd tea.Cmd
	b.vp, cmd = b.vp.Update(msg)
	return b, cmd
}

func (b *Browser) onDeviceKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, browserKeys.prev):
		b.cursor = max(b.cursor-1, 0)
	case key.Matches(msg, browserKeys.next):
		b.cursor = min(b.cursor+1, max(len(b.devices)-1, 0))
	case key.Matches(msg, browserKeys.open):
		if b.cursor < len(b.devices) && b.devices[b.cursor].CanCapture() {
			b.showRates(b.devices[b.cursor])
		}
	}
}

// onRateKey reports whether a rate was picked.
func (b *Browser) onRateKey(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, browserKeys.back):
		b.stage = stageDevices
	case key.Matches(msg, browserKeys.prev):
		b.rateCursor = max(b.rateCursor-1, 0)
	case key.Matches(msg, browserKeys.next):
		b.rateCursor = min(b.rateCursor+1, len(b.rates)-1)
	case key.Matches(msg, browserKeys.pick):
		d := b.devices[b.cursor]
		b.chosen = &Selection{DeviceID: d.ID, DeviceName: d.Name, SampleRate: b.rates[b.rateCursor]}
		return true
	}
	return false
}

// showRates opens the rate stage with the device default preselected.
func (b *Browser) showRates(d audio.Device) {
	b.stage = stageRates
	b.rates = slices.Clone(standardRates)
	if d.DefaultSampleRate > 0 && !slices.Contains(b.rates, d.DefaultSampleRate) {
		b.rates = append(b.rates, d.DefaultSampleRate)
		slices.Sort(b.rates)
	}
	b.rateCursor = max(slices.Index(b.rates, d.DefaultSampleRate), 0)
}

func (b Browser) View() string {
	switch {
	case !b.sized:
		return "Initializing..."
	case b.err != nil:
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", b.err)
	}

	header, help := "Audio Device List", "↑/↓: Navigate • Enter: Configure • q: Quit"
	if b.stage == stageRates {
		header, help = "Device Configuration", "↑/↓: Change Value • s/Enter: Use Device • Esc: Back • q: Quit"
	}
	return headerStyle.Render(header) + "\n\n" + b.vp.View() + "\n\n" + infoStyle.Render(help)
}

func (b Browser) body() string {
	if b.stage == stageRates {
		return b.rateList()
	}
	return b.deviceList()
}

func (b Browser) deviceList() string {
	if len(b.devices) == 0 {
		return "No audio devices found."
	}
	var sb strings.Builder
	for i, d := range b.devices {
		kind := d.Kind()
		if d.Loopback {
			kind += ", loopback"
		}
		entry := fmt.Sprintf("[%d] %s (%s)\n    in %d / out %d channels, %.0f Hz default\n",
			d.ID, d.Name, kind, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		if i == b.cursor {
			entry = cursorStyle.Render(entry)
		} else if !d.CanCapture() {
			entry = mutedStyle.Render(entry)
		}
		sb.WriteString(entry + "\n")
	}
	return sb.String()
}

func (b Browser) rateList() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configure Device: %s\n\nSample Rate:\n", b.devices[b.cursor].Name)
	for i, rate := range b.rates {
		if i == b.rateCursor {
			sb.WriteString(cursorStyle.Render(fmt.Sprintf("  ▶ %.0f Hz", rate)) + "\n")
			continue
		}
		fmt.Fprintf(&sb, "    %.0f Hz\n", rate)
	}
	return sb.String()
}

// Selection returns the confirmed choice, or nil when the user quit.
func (b Browser) Selection() *Selection { return b.chosen }

// BrowseDevices runs the browser over the host's devices and returns the
// user's choice, nil if they quit without choosing.
func BrowseDevices() (*Selection, error) {
	final, err := tea.NewProgram(NewBrowser(audio.HostDevices), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	if b, ok := final.(Browser); ok {
		return b.Selection(), nil
	}
	return nil, nil
}

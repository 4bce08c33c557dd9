// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ledviz/internal/log"
	"ledviz/internal/sample"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	meterFPS       = 60
	springFreq     = 8.0
	springDamping  = 0.6
	defaultHeight  = 16
	minMeterHeight = 4
)

// blocks are eighth-height cells, empty to full.
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	lowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B900FF"))
	midStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5F87FF"))
	highStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	beatStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Bold(true)
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/meterFPS, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// bar is one channel's animated height.
type bar struct {
	pos, vel float64
}

// MeterModel renders one vertical bar per channel. Bars chase the latest
// frame through a spring so the display animates at the terminal's refresh
// rate regardless of the pipeline's cycle rate.
type MeterModel struct {
	latest *atomic.Pointer[sample.Frame]
	spring harmonica.Spring
	bars   []bar
	accent bar
	beat   int // ticks left to show the beat marker
	seq    uint64
	width  int
	height int
}

// NewMeterModel creates a model that reads frames from latest on each tick.
func NewMeterModel(channels int, latest *atomic.Pointer[sample.Frame]) MeterModel {
	return MeterModel{
		latest: latest,
		spring: harmonica.NewSpring(harmonica.FPS(meterFPS), springFreq, springDamping),
		bars:   make([]bar, channels),
		height: defaultHeight,
	}
}

func (m MeterModel) Init() tea.Cmd { return tick() }

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key := msg.String(); key == "q" || key == "ctrl+c" || key == "esc" {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = max(msg.Height-3, minMeterHeight)

	case tickMsg:
		m.step()
		return m, tick()
	}
	return m, nil
}

// step advances every spring toward the latest frame.
func (m *MeterModel) step() {
	var f sample.Frame
	if p := m.latest.Load(); p != nil {
		f = *p
		if f.Beat && f.Seq != m.seq {
			m.beat = meterFPS / 6
		}
		m.seq = f.Seq
	}
	impact := max(f.Impact, f.ImpactR)

	for i := range m.bars {
		target := barTarget(f, i)
		b := &m.bars[i]
		b.pos, b.vel = m.spring.Update(b.pos, b.vel, target)
	}
	m.accent.pos, m.accent.vel = m.spring.Update(m.accent.pos, m.accent.vel, impact)

	if m.beat > 0 {
		m.beat--
	}
}

// barTarget returns the level for column i. A split frame shows the left
// side reversed then the right, bass meeting in the middle.
func barTarget(f sample.Frame, i int) float64 {
	levels := f.Levels
	if f.Split() {
		if side := len(f.Levels); i < side {
			i = side - 1 - i
		} else {
			levels, i = f.LevelsR, i-side
		}
	}
	if i < len(levels) {
		return levels[i]
	}
	return 0
}

// View renders bars bottom-up using eighth blocks.
func (m MeterModel) View() string {
	var sb strings.Builder

	marker := "  "
	if m.beat > 0 {
		marker = beatStyle.Render("● ")
	}
	fmt.Fprintf(&sb, "%simpact %s\n", marker, hbar(m.accent.pos, 20))

	cols := len(m.bars)
	if m.width > 0 {
		cols = min(cols, m.width)
	}

	for row := m.height - 1; row >= 0; row-- {
		line := make([]rune, cols)
		for c := range cols {
			line[c] = cell(m.bars[c].pos, row, m.height)
		}
		style := lowStyle
		switch {
		case row >= m.height*2/3:
			style = highStyle
		case row >= m.height/3:
			style = midStyle
		}
		sb.WriteString(style.Render(string(line)))
		sb.WriteByte('\n')
	}
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// cell returns the glyph for row (0 = bottom) of a bar at level v.
func cell(v float64, row, height int) rune {
	fill := min(max(v, 0), 1) * float64(height) * 8
	eighths := int(fill) - row*8
	switch {
	case eighths <= 0:
		return blocks[0]
	case eighths >= 8:
		return blocks[8]
	default:
		return blocks[eighths]
	}
}

func hbar(v float64, width int) string {
	n := int(min(max(v, 0), 1) * float64(width))
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}

// Meter is a Transport that shows frames in the terminal. Send only swaps
// a pointer, so a slow terminal never stalls the consumer.
type Meter struct {
	latest  atomic.Pointer[sample.Frame]
	program *tea.Program
	done    chan struct{}
	once    sync.Once
	err     error
}

// NewMeter starts the meter program. onQuit, when not nil, runs after the
// user leaves the meter.
func NewMeter(channels int, onQuit func(), opts ...tea.ProgramOption) *Meter {
	m := &Meter{done: make(chan struct{})}
	m.program = tea.NewProgram(NewMeterModel(channels, &m.latest), opts...)

	go func() {
		defer close(m.done)
		if _, err := m.program.Run(); err != nil {
			m.err = err
			log.Errorf("Meter: %v", err)
		}
		if onQuit != nil {
			onQuit()
		}
	}()
	return m
}

// Send publishes frame to the meter. Published frames are never mutated,
// so the meter keeps a reference instead of a copy.
func (m *Meter) Send(frame sample.Frame) error {
	m.latest.Store(&frame)
	return nil
}

// Done is closed once the meter program exits.
func (m *Meter) Done() <-chan struct{} { return m.done }

// Close stops the program and restores the terminal.
func (m *Meter) Close() error {
	m.once.Do(func() {
		m.program.Quit()
		<-m.done
	})
	return m.err
}

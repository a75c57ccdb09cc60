// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"shaker/internal/analysis"
	"shaker/internal/engine"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))
)

const (
	defaultBarWidth = 41
	manualStep      = 0.1
)

// EngineView is the part of the engine the monitor drives.
type EngineView interface {
	Latest() *engine.Snapshot
	Toggle()
	NudgeManual(delta float64) bool
}

type keyMap struct {
	Toggle key.Binding
	Up     key.Binding
	Down   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s", "start/stop")),
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "raise")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "lower")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// MonitorModel polls the engine snapshot once per frame and renders it.
type MonitorModel struct {
	engine   EngineView
	interval time.Duration
	snap     *engine.Snapshot
	barWidth int
}

// NewMonitorModel creates a monitor refreshing every interval.
func NewMonitorModel(e EngineView, interval time.Duration) MonitorModel {
	if interval <= 0 {
		interval = time.Second / 30
	}
	return MonitorModel{engine: e, interval: interval, barWidth: defaultBarWidth}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts polling.
func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, keys and resizes.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.engine.Latest()
		return m, m.tick()

	case tea.WindowSizeMsg:
		// Leave room for the brackets and the position readout.
		m.barWidth = max(11, min(msg.Width-12, 121))
		if m.barWidth%2 == 0 {
			m.barWidth--
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			m.engine.Toggle()
		case key.Matches(msg, keys.Up):
			m.engine.NudgeManual(manualStep)
		case key.Matches(msg, keys.Down):
			m.engine.NudgeManual(-manualStep)
		}
	}
	return m, nil
}

// View renders the monitor.
func (m MonitorModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Shaker"))
	sb.WriteString("\n\n")

	if m.snap == nil {
		sb.WriteString(infoStyle.Render("Waiting for the first frame..."))
		sb.WriteString("\n\n")
		sb.WriteString(helpLine())
		return sb.String()
	}

	f := m.snap.Frame
	state := dimStyle.Render("stopped")
	if f.Started {
		state = highlightStyle.Render("running")
	}
	fmt.Fprintf(&sb, "mode: %s  %s\n", infoStyle.Render(f.Mode), state)
	fmt.Fprintf(&sb, "%s\n\n", PeriodLabel(f.PeriodMs, f.Detected))
	fmt.Fprintf(&sb, "[%s] %+.2f\n\n", Bar(f.Position, m.barWidth), f.Position)

	if f.Mode == "shake" {
		fmt.Fprintf(&sb, "half-cycle amplitude: %.2f   last event: %s\n", f.HalfAmplitude, m.snap.LastEvent)
		s := m.snap.Stats
		if s.Count > 0 {
			fmt.Fprintf(&sb, "periods: n=%d mean=%.1fms sd=%.1fms median=%.1fms\n", s.Count, s.Mean, s.StdDev, s.Median)
		} else {
			sb.WriteString(dimStyle.Render("periods: none yet"))
			sb.WriteString("\n")
		}
	}
	line := fmt.Sprintf("samples: %d (discarded %d)  frame #%d", m.snap.Samples, m.snap.Discarded, f.Seq)
	if m.snap.Recording {
		line += "  ● rec"
	}
	sb.WriteString(dimStyle.Render(line))
	sb.WriteString("\n\n")
	sb.WriteString(helpLine())
	return sb.String()
}

func helpLine() string {
	parts := make([]string, 0, 4)
	for _, b := range []key.Binding{keys.Toggle, keys.Up, keys.Down, keys.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return infoStyle.Render(strings.Join(parts, " • "))
}

// PeriodLabel formats a period in seconds with its frequency, or INF when
// no oscillation is detected.
func PeriodLabel(periodMs float64, detected bool) string {
	if !detected || periodMs <= 0 || periodMs >= analysis.InfinitePeriod {
		return "period: INF"
	}
	return fmt.Sprintf("period: %.3f (s) ⇨ freq=%.3f Hz", periodMs/1000, 1000/periodMs)
}

// Bar draws position in [-1, 1] as a horizontal gauge of width cells with
// the centre marked. Out-of-range positions are clamped.
func Bar(position float64, width int) string {
	if width < 3 {
		width = 3
	}
	if math.IsNaN(position) {
		position = 0
	}
	position = math.Max(-1, math.Min(1, position))

	center := width / 2
	idx := center + int(math.Round(position*float64(center)))
	lo, hi := min(center, idx), max(center, idx)

	cells := make([]rune, width)
	for i := range cells {
		switch {
		case i == idx:
			cells[i] = '█'
		case i >= lo && i <= hi:
			cells[i] = '▒'
		case i == center:
			cells[i] = '┼'
		default:
			cells[i] = '─'
		}
	}
	return string(cells)
}

// RunMonitor runs the monitor until the user quits or ctx is done.
func RunMonitor(ctx context.Context, e EngineView, interval time.Duration) error {
	p := tea.NewProgram(NewMonitorModel(e, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

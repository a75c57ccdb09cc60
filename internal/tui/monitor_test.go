// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"shaker/internal/analysis"
	"shaker/internal/audio"
	"shaker/internal/engine"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	snap    *engine.Snapshot
	toggles int
	nudges  []float64
}

func (f *fakeEngine) Latest() *engine.Snapshot { return f.snap }
func (f *fakeEngine) Toggle()                  { f.toggles++ }
func (f *fakeEngine) NudgeManual(d float64) bool {
	f.nudges = append(f.nudges, d)
	return true
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "period: 0.512 (s) ⇨ freq=1.953 Hz", PeriodLabel(512, true))
	assert.Equal(t, "period: INF", PeriodLabel(512, false))
	assert.Equal(t, "period: INF", PeriodLabel(analysis.InfinitePeriod, true))
	assert.Equal(t, "period: INF", PeriodLabel(0, true))
}

func TestBar(t *testing.T) {
	tests := []struct {
		pos  float64
		want string
	}{
		{0, "──█──"},
		{1, "──▒▒█"},
		{-1, "█▒▒──"},
		{0.5, "──▒█─"},
		{9, "──▒▒█"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bar(tt.pos, 5), "position %v", tt.pos)
	}
	assert.Equal(t, 41, utf8.RuneCountInString(Bar(0.3, 41)))
	assert.Equal(t, 3, utf8.RuneCountInString(Bar(0, 0)), "minimum width")
}

func TestMonitorPollsAndRenders(t *testing.T) {
	fe := &fakeEngine{}
	m := NewMonitorModel(fe, time.Millisecond)
	require.NotNil(t, m.Init())

	assert.Contains(t, m.View(), "Waiting for the first frame")

	fe.snap = &engine.Snapshot{
		Frame: engine.Frame{
			Seq: 12, Mode: "shake", Started: true, Detected: true,
			Position: 0.5, PeriodMs: 512, HalfAmplitude: 3.2,
		},
		Stats:     analysis.PeriodSummary{Count: 3, Mean: 510, StdDev: 4, Median: 512},
		LastEvent: analysis.EventAccepted,
		Samples:   900,
		Recording: true,
	}
	next, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd, "polling continues")
	view := next.View()

	for _, want := range []string{
		"shake", "running",
		"period: 0.512 (s) ⇨ freq=1.953 Hz",
		"+0.50",
		"half-cycle amplitude: 3.20",
		"n=3 mean=510.0ms",
		"samples: 900",
		"rec",
	} {
		assert.Contains(t, view, want)
	}
}

func TestMonitorKeys(t *testing.T) {
	fe := &fakeEngine{}
	var m tea.Model = NewMonitorModel(fe, time.Millisecond)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, fe.toggles)
	assert.Equal(t, []float64{manualStep, -manualStep}, fe.nudges)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestMonitorResizeKeepsOddBar(t *testing.T) {
	var m tea.Model = NewMonitorModel(&fakeEngine{}, time.Millisecond)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Equal(t, 67, m.(MonitorModel).barWidth)
}

func TestDevicePicker(t *testing.T) {
	var m tea.Model = NewDevicePickerModel([]audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2},
		{ID: 1, Name: "USB Interface", MaxInputChannels: 2, DefaultSampleRate: 48000},
		{ID: 2, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
	})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "USB Interface")
	assert.NotContains(t, m.View(), "Speakers", "output-only devices are hidden")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	id, ok := m.(DevicePickerModel).Selected()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestDevicePickerQuitWithoutChoice(t *testing.T) {
	var m tea.Model = NewDevicePickerModel(nil)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.True(t, strings.Contains(m.View(), "No input devices found."))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	id, ok := m.(DevicePickerModel).Selected()
	assert.False(t, ok)
	assert.Equal(t, audio.DefaultDevice, id)
}

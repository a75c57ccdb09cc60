// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"shaker/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickKeys = struct {
		Up, Down, Select, Quit key.Binding
	}{
		Up:     key.NewBinding(key.WithKeys("up", "k")),
		Down:   key.NewBinding(key.WithKeys("down", "j")),
		Select: key.NewBinding(key.WithKeys("enter")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
	}
)

// DevicePickerModel lists the input-capable devices and lets the user pick
// the one the sensor is wired to.
type DevicePickerModel struct {
	devices  []audio.Device
	index    int
	viewport viewport.Model
	ready    bool
	selected int
	chosen   bool
}

// NewDevicePickerModel keeps only devices with input channels.
func NewDevicePickerModel(devices []audio.Device) DevicePickerModel {
	inputs := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return DevicePickerModel{devices: inputs, selected: audio.DefaultDevice}
}

// Selected returns the chosen device ID and whether a choice was made.
func (m DevicePickerModel) Selected() (int, bool) {
	return m.selected, m.chosen
}

// Init implements tea.Model.
func (m DevicePickerModel) Init() tea.Cmd { return nil }

// Update handles navigation and selection.
func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pickKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, pickKeys.Up):
			if m.index > 0 {
				m.index--
			}
		case key.Matches(msg, pickKeys.Down):
			if m.index < len(m.devices)-1 {
				m.index++
			}
		case key.Matches(msg, pickKeys.Select):
			if len(m.devices) > 0 {
				m.selected = m.devices[m.index].ID
				m.chosen = true
				return m, tea.Quit
			}
		}
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the picker.
func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Sensor Input Device")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}
	var sb strings.Builder
	for i, d := range m.devices {
		info := fmt.Sprintf("[%d] %s\n    Input channels: %d, Default sample rate: %.0f Hz\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.index {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker and returns the chosen device ID.
func PickDevice(devices []audio.Device) (int, bool, error) {
	final, err := tea.NewProgram(NewDevicePickerModel(devices), tea.WithAltScreen()).Run()
	if err != nil {
		return audio.DefaultDevice, false, err
	}
	id, ok := final.(DevicePickerModel).Selected()
	return id, ok, nil
}

// SPDX-License-Identifier: MIT

// Package audio reads an accelerometer wired to an audio interface. The
// sensor's DC-coupled output is captured through PortAudio and each
// callback block becomes one acceleration sample.
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DefaultDevice selects the system default input device.
const DefaultDevice = -1

// Device describes an audio device.
type Device struct {
	ID                 int
	Name               string
	MaxInputChannels   int
	MaxOutputChannels  int
	DefaultSampleRate  float64
	LowInputLatencyMs  float64
	HighInputLatencyMs float64
}

// Type returns "Input", "Output" or "Input/Output".
func (d Device) Type() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return ""
	}
}

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice retrieves the input device for deviceID, or the system default
// for DefaultDevice.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == DefaultDevice {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// GetDevices returns all devices. PortAudio must be initialized.
func GetDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                 i,
			Name:               info.Name,
			MaxInputChannels:   info.MaxInputChannels,
			MaxOutputChannels:  info.MaxOutputChannels,
			DefaultSampleRate:  info.DefaultSampleRate,
			LowInputLatencyMs:  info.DefaultLowInputLatency.Seconds() * 1000,
			HighInputLatencyMs: info.DefaultHighInputLatency.Seconds() * 1000,
		}
	}
	return devices, nil
}

// ListDevices writes a description of every device to w.
func ListDevices(w io.Writer) error {
	devices, err := GetDevices()
	if err != nil {
		return err
	}
	WriteDevices(w, devices)
	return nil
}

// WriteDevices formats devices the way ListDevices prints them.
func WriteDevices(w io.Writer, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Type())
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n\n", d.LowInputLatencyMs, d.HighInputLatencyMs)
	}
}

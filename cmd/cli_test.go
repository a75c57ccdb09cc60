// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shaker/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	require.NoError(t, err)

	want := config.NewConfig()
	assert.Equal(t, want, cfg)
	assert.Empty(t, cfg.Command)
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"-v",
		"--mode", "automatic", "--auto-period", "750", "--start",
		"--source", "websocket", "--address", ":9000",
		"-r", "30",
		"--udp", "--udp-target", "10.0.0.2:7000", "--udp-interval", "50ms",
		"--monitor",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "automatic", cfg.Control.Mode)
	assert.Equal(t, 750.0, cfg.Control.AutoPeriod)
	assert.True(t, cfg.Control.AutoStart)
	assert.Equal(t, "websocket", cfg.Source.Kind)
	assert.Equal(t, ":9000", cfg.Source.Address)
	assert.Equal(t, 30.0, cfg.Engine.FrameRate)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "10.0.0.2:7000", cfg.Transport.UDPTargetAddress)
	assert.Equal(t, 50*time.Millisecond, cfg.Transport.UDPSendInterval)
	assert.True(t, cfg.Monitor.Enabled)
}

func TestParseArgsFlagsOverrideFileOnlyWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
control:
  mode: manual
engine:
  frame_rate: 120
estimator:
  min_amplitude: 2.5
`), 0o644))

	cfg, err := ParseArgs([]string{"--config", path, "--frame-rate", "25"})
	require.NoError(t, err)

	assert.Equal(t, "manual", cfg.Control.Mode, "unset flag keeps the file value")
	assert.Equal(t, 2.5, cfg.Estimator.MinAmplitude)
	assert.Equal(t, 25.0, cfg.Engine.FrameRate, "set flag wins over the file")
}

func TestParseArgsList(t *testing.T) {
	cfg, err := ParseArgs([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, CommandList, cfg.Command)

	cfg, err = ParseArgs([]string{"list", "-i", "-d", "3"})
	require.NoError(t, err)
	assert.Equal(t, CommandPickDevice, cfg.Command)
	assert.Equal(t, 3, cfg.Source.Device, "persistent flags reach subcommands")
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"positional argument", []string{"extra"}},
		{"invalid mode", []string{"--mode", "dance"}},
		{"invalid frame rate", []string{"--frame-rate", "0"}},
		{"missing config", []string{"--config", "/nonexistent/shaker.yaml"}},
		{"wav without file", []string{"--source", "wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseArgsVersion(t *testing.T) {
	_, err := ParseArgs([]string{"--version"})
	assert.ErrorIs(t, err, ErrNoRun)
}

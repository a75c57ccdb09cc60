// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the shaker pipeline.
const (
	DefaultLogLevel = "info"

	// Estimator
	DefaultMinAmplitude = 1.0 // Half-cycle extremum needed to accept a period.
	DefaultStaleFactor  = 1.5 // Periods older than factor*period are dropped.

	// Synthesizer
	DefaultPeriodSpeed = 1000.0 // ms of period per ms of wall time.
	DefaultSynthMode   = "rate-limited"

	// Control
	DefaultControlMode   = "shake"
	DefaultAutoPeriod    = 500.0
	DefaultAutoAmplitude = 1.0

	// Source
	DefaultSourceKind       = "synthetic"
	DefaultSourceSampleRate = 60.0 // Typical accelerometer event rate (Hz).
	DefaultSourceFrequency  = 2.0  // Synthetic shaking frequency (Hz).
	DefaultSourceAmplitude  = 4.0  // Synthetic shaking amplitude (m/s^2).
	DefaultSourceNoise      = 0.3
	DefaultSourceAddress    = ":8090"
	DefaultSourceSubject    = "shaker.samples"
	DefaultDeviceID         = -1   // -1 represents the system default device.
	DefaultAudioGain        = 10.0 // Acceleration at digital full scale.

	// Engine
	DefaultFrameRate = 60.0

	// Recording
	DefaultRecordingSampleRate = 60

	// Transport
	DefaultWebSocketAddress = ":8091"
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultUDPInterval      = 33 * time.Millisecond // ~30Hz
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultNATSSubject      = "shaker.frames"

	// Limits
	MinFrameRate  = 1.0
	MaxFrameRate  = 1000.0
	MinSampleRate = 1.0
	MaxSampleRate = 192000.0
	MinDeviceID   = -1
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug       bool              `yaml:"debug"`             // Enable debug logging.
	LogLevel    string            `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command     string            `yaml:"command,omitempty"` // A one-off command to execute instead of running the engine (e.g., "list").
	Estimator   EstimatorConfig   `yaml:"estimator"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Control     ControlConfig     `yaml:"control"`
	Source      SourceConfig      `yaml:"source"`
	Engine      EngineConfig      `yaml:"engine"`
	Recording   RecordingConfig   `yaml:"recording"`
	Transport   TransportConfig   `yaml:"transport"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

// EstimatorConfig tunes zero-crossing period detection.
type EstimatorConfig struct {
	MinAmplitude float64 `yaml:"min_amplitude"`
	StaleFactor  float64 `yaml:"stale_factor"`
}

// SynthesizerConfig tunes the phase-continuous output.
type SynthesizerConfig struct {
	PeriodSpeed float64 `yaml:"period_speed"`
	Mode        string  `yaml:"mode"` // "rate-limited" or "retrigger".
}

// ControlConfig selects what drives the position.
type ControlConfig struct {
	Mode          string  `yaml:"mode"`           // "manual", "automatic" or "shake".
	AutoPeriod    float64 `yaml:"auto_period"`    // Period (ms) in automatic mode.
	AutoAmplitude float64 `yaml:"auto_amplitude"` // Amplitude in automatic mode.
	AutoStart     bool    `yaml:"auto_start"`
}

// SourceConfig selects and configures the sample source.
type SourceConfig struct {
	Kind       string  `yaml:"kind"`        // "synthetic", "wav", "websocket", "nats" or "audio".
	Address    string  `yaml:"address"`     // Listen address for the websocket source.
	URL        string  `yaml:"url"`         // NATS server URL for the nats source.
	Subject    string  `yaml:"subject"`     // NATS subject for the nats source.
	File       string  `yaml:"file"`        // WAV file for the wav source.
	SampleRate float64 `yaml:"sample_rate"` // Samples per second (synthetic, nats binary, audio blocks).
	Count      int     `yaml:"count"`       // Synthetic sample count, 0 for unlimited.
	Realtime   bool    `yaml:"realtime"`    // Pace synthetic and wav sources in wall time.
	Frequency  float64 `yaml:"frequency"`   // Synthetic shaking frequency (Hz).
	Amplitude  float64 `yaml:"amplitude"`   // Synthetic shaking amplitude.
	Noise      float64 `yaml:"noise"`       // Synthetic uniform noise amplitude.
	Device     int     `yaml:"device"`      // PortAudio input device index (-1 for default).
	Gain       float64 `yaml:"gain"`        // Audio source: acceleration at digital full scale.
}

// EngineConfig controls the frame loop.
type EngineConfig struct {
	FrameRate float64 `yaml:"frame_rate"` // Position frames per second.
}

// RecordingConfig holds settings related to sample recording.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Empty for an auto-generated filename.
	SampleRate int    `yaml:"sample_rate"` // Nominal rate written to the WAV header.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	NATSEnabled      bool          `yaml:"nats_enabled"`
	NATSURL          string        `yaml:"nats_url"`
	NATSSubject      string        `yaml:"nats_subject"`
}

// MonitorConfig controls the terminal monitor.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewConfig returns a Config populated with defaults. It is the base that
// config files, environment overrides and command line flags apply to.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Estimator: EstimatorConfig{
			MinAmplitude: DefaultMinAmplitude,
			StaleFactor:  DefaultStaleFactor,
		},
		Synthesizer: SynthesizerConfig{
			PeriodSpeed: DefaultPeriodSpeed,
			Mode:        DefaultSynthMode,
		},
		Control: ControlConfig{
			Mode:          DefaultControlMode,
			AutoPeriod:    DefaultAutoPeriod,
			AutoAmplitude: DefaultAutoAmplitude,
		},
		Source: SourceConfig{
			Kind:       DefaultSourceKind,
			Address:    DefaultSourceAddress,
			URL:        DefaultNATSURL,
			Subject:    DefaultSourceSubject,
			SampleRate: DefaultSourceSampleRate,
			Realtime:   true,
			Frequency:  DefaultSourceFrequency,
			Amplitude:  DefaultSourceAmplitude,
			Noise:      DefaultSourceNoise,
			Device:     DefaultDeviceID,
			Gain:       DefaultAudioGain,
		},
		Engine: EngineConfig{
			FrameRate: DefaultFrameRate,
		},
		Recording: RecordingConfig{
			SampleRate: DefaultRecordingSampleRate,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
			NATSURL:          DefaultNATSURL,
			NATSSubject:      DefaultNATSSubject,
		},
	}
}

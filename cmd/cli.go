// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"

	"shaker/internal/config"
	"shaker/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ErrNoRun is returned when the arguments only asked for help or the
// version banner.
var ErrNoRun = errors.New("nothing to run")

// Commands set on Config.Command.
const (
	CommandList       = "list"
	CommandPickDevice = "pick-device"
)

// overrides copies a flag value from the flag-bound config onto the loaded
// one. Only flags the user set are applied.
var overrides = map[string]func(dst, src *config.Config){
	"verbose":           func(d, s *config.Config) { d.Debug = s.Debug },
	"log-level":         func(d, s *config.Config) { d.LogLevel = s.LogLevel },
	"min-amplitude":     func(d, s *config.Config) { d.Estimator.MinAmplitude = s.Estimator.MinAmplitude },
	"stale-factor":      func(d, s *config.Config) { d.Estimator.StaleFactor = s.Estimator.StaleFactor },
	"period-speed":      func(d, s *config.Config) { d.Synthesizer.PeriodSpeed = s.Synthesizer.PeriodSpeed },
	"synth-mode":        func(d, s *config.Config) { d.Synthesizer.Mode = s.Synthesizer.Mode },
	"mode":              func(d, s *config.Config) { d.Control.Mode = s.Control.Mode },
	"auto-period":       func(d, s *config.Config) { d.Control.AutoPeriod = s.Control.AutoPeriod },
	"auto-amplitude":    func(d, s *config.Config) { d.Control.AutoAmplitude = s.Control.AutoAmplitude },
	"start":             func(d, s *config.Config) { d.Control.AutoStart = s.Control.AutoStart },
	"source":            func(d, s *config.Config) { d.Source.Kind = s.Source.Kind },
	"address":           func(d, s *config.Config) { d.Source.Address = s.Source.Address },
	"url":               func(d, s *config.Config) { d.Source.URL = s.Source.URL },
	"subject":           func(d, s *config.Config) { d.Source.Subject = s.Source.Subject },
	"file":              func(d, s *config.Config) { d.Source.File = s.Source.File },
	"sample-rate":       func(d, s *config.Config) { d.Source.SampleRate = s.Source.SampleRate },
	"count":             func(d, s *config.Config) { d.Source.Count = s.Source.Count },
	"realtime":          func(d, s *config.Config) { d.Source.Realtime = s.Source.Realtime },
	"frequency":         func(d, s *config.Config) { d.Source.Frequency = s.Source.Frequency },
	"amplitude":         func(d, s *config.Config) { d.Source.Amplitude = s.Source.Amplitude },
	"noise":             func(d, s *config.Config) { d.Source.Noise = s.Source.Noise },
	"device":            func(d, s *config.Config) { d.Source.Device = s.Source.Device },
	"gain":              func(d, s *config.Config) { d.Source.Gain = s.Source.Gain },
	"frame-rate":        func(d, s *config.Config) { d.Engine.FrameRate = s.Engine.FrameRate },
	"record":            func(d, s *config.Config) { d.Recording.Enabled = s.Recording.Enabled },
	"output":            func(d, s *config.Config) { d.Recording.OutputFile = s.Recording.OutputFile },
	"websocket":         func(d, s *config.Config) { d.Transport.WebSocketEnabled = s.Transport.WebSocketEnabled },
	"websocket-address": func(d, s *config.Config) { d.Transport.WebSocketAddress = s.Transport.WebSocketAddress },
	"udp":               func(d, s *config.Config) { d.Transport.UDPEnabled = s.Transport.UDPEnabled },
	"udp-target":        func(d, s *config.Config) { d.Transport.UDPTargetAddress = s.Transport.UDPTargetAddress },
	"udp-interval":      func(d, s *config.Config) { d.Transport.UDPSendInterval = s.Transport.UDPSendInterval },
	"nats":              func(d, s *config.Config) { d.Transport.NATSEnabled = s.Transport.NATSEnabled },
	"nats-url":          func(d, s *config.Config) { d.Transport.NATSURL = s.Transport.NATSURL },
	"nats-subject":      func(d, s *config.Config) { d.Transport.NATSSubject = s.Transport.NATSSubject },
	"monitor":           func(d, s *config.Config) { d.Monitor.Enabled = s.Monitor.Enabled },
}

// ParseArgs parses the command line into a configuration. The YAML file
// named by --config (or config.yaml) is loaded first and flags the user set
// take precedence over it.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildInfo()
	flags := config.NewConfig()
	var (
		configPath  string
		command     string
		interactive bool
		ran         bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ran = true
			command = CommandList
			if interactive {
				command = CommandPickDevice
			}
		},
	}
	listCmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"Pick the sensor input device interactively")
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "f", "",
		"YAML configuration file. Defaults to config.yaml when present")

	// Debug Configuration
	pf.BoolVarP(&flags.Debug, "verbose", "v", false, "Show verbose output")
	pf.StringVar(&flags.LogLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")

	// Tracking Configuration
	pf.Float64Var(&flags.Estimator.MinAmplitude, "min-amplitude", config.DefaultMinAmplitude,
		"Half-cycle extremum needed to accept a period")
	pf.Float64Var(&flags.Estimator.StaleFactor, "stale-factor", config.DefaultStaleFactor,
		"Periods older than factor*period decay to INF")
	pf.Float64Var(&flags.Synthesizer.PeriodSpeed, "period-speed", config.DefaultPeriodSpeed,
		"Maximum period change per unit of time")
	pf.StringVar(&flags.Synthesizer.Mode, "synth-mode", config.DefaultSynthMode,
		"Phase synthesizer mode (rate-limited, retrigger)")

	// Control Configuration
	pf.StringVarP(&flags.Control.Mode, "mode", "m", config.DefaultControlMode,
		"Control mode (manual, automatic, shake)")
	pf.Float64Var(&flags.Control.AutoPeriod, "auto-period", config.DefaultAutoPeriod,
		"Period in milliseconds for automatic mode")
	pf.Float64Var(&flags.Control.AutoAmplitude, "auto-amplitude", config.DefaultAutoAmplitude,
		"Amplitude for automatic mode")
	pf.BoolVar(&flags.Control.AutoStart, "start", false, "Start the control mode immediately")

	// Source Configuration
	pf.StringVarP(&flags.Source.Kind, "source", "s", config.DefaultSourceKind,
		"Sample source (synthetic, wav, websocket, nats, audio)")
	pf.StringVar(&flags.Source.Address, "address", config.DefaultSourceAddress, "Listen address for the websocket source")
	pf.StringVar(&flags.Source.URL, "url", config.DefaultNATSURL, "NATS server URL for the nats source")
	pf.StringVar(&flags.Source.Subject, "subject", config.DefaultSourceSubject, "NATS subject for the nats source")
	pf.StringVar(&flags.Source.File, "file", "", "WAV file for the wav source")
	pf.Float64Var(&flags.Source.SampleRate, "sample-rate", config.DefaultSourceSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVar(&flags.Source.Count, "count", 0, "Number of synthetic samples, 0 for unlimited")
	pf.BoolVar(&flags.Source.Realtime, "realtime", true, "Pace synthetic and wav sources in real time")
	pf.Float64Var(&flags.Source.Frequency, "frequency", config.DefaultSourceFrequency, "Synthetic shaking frequency (Hz)")
	pf.Float64Var(&flags.Source.Amplitude, "amplitude", config.DefaultSourceAmplitude, "Synthetic shaking amplitude")
	pf.Float64Var(&flags.Source.Noise, "noise", config.DefaultSourceNoise, "Synthetic noise amplitude")
	pf.IntVarP(&flags.Source.Device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.Float64Var(&flags.Source.Gain, "gain", config.DefaultAudioGain, "Acceleration at digital full scale (audio source)")

	// Engine Configuration
	pf.Float64VarP(&flags.Engine.FrameRate, "frame-rate", "r", config.DefaultFrameRate, "Position frames per second")

	// Recording Configuration
	pf.BoolVar(&flags.Recording.Enabled, "record", false, "Record incoming samples to a WAV file")
	pf.StringVarP(&flags.Recording.OutputFile, "output", "o", "",
		"Output file name. Default is samples-DD-MM-YYYY-HHMMSS.wav")

	// Transport Configuration
	pf.BoolVar(&flags.Transport.WebSocketEnabled, "websocket", false, "Broadcast frames over WebSocket")
	pf.StringVar(&flags.Transport.WebSocketAddress, "websocket-address", config.DefaultWebSocketAddress,
		"Listen address for the frame WebSocket")
	pf.BoolVar(&flags.Transport.UDPEnabled, "udp", false, "Publish binary frames over UDP")
	pf.StringVar(&flags.Transport.UDPTargetAddress, "udp-target", config.DefaultUDPTarget, "UDP target address")
	pf.DurationVar(&flags.Transport.UDPSendInterval, "udp-interval", config.DefaultUDPInterval, "UDP send interval")
	pf.BoolVar(&flags.Transport.NATSEnabled, "nats", false, "Publish JSON frames to NATS")
	pf.StringVar(&flags.Transport.NATSURL, "nats-url", config.DefaultNATSURL, "NATS server URL for frames")
	pf.StringVar(&flags.Transport.NATSSubject, "nats-subject", config.DefaultNATSSubject, "NATS subject for frames")

	// Monitor Configuration
	pf.BoolVar(&flags.Monitor.Enabled, "monitor", false, "Show the terminal monitor")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		return nil, ErrNoRun
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	applyChanged(rootCmd.PersistentFlags(), cfg, flags)
	cfg.Command = command
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyChanged(fs *pflag.FlagSet, dst, src *config.Config) {
	// Changed lives on the shared *Flag, while Visit only sees flags parsed
	// through fs itself, which misses persistent flags given to a subcommand.
	fs.VisitAll(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok && f.Changed {
			apply(dst, src)
		}
	})
}

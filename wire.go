// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"time"

	"shaker/internal/analysis"
	"shaker/internal/audio"
	"shaker/internal/config"
	"shaker/internal/control"
	"shaker/internal/source"
	"shaker/internal/transport"
	"shaker/internal/transport/udp"
)

// trackerOptions maps the estimator and synthesizer sections.
func trackerOptions(cfg *config.Config) (analysis.TrackerOptions, error) {
	synthMode, err := analysis.ParseSynthMode(cfg.Synthesizer.Mode)
	if err != nil {
		return analysis.TrackerOptions{}, err
	}
	opts := analysis.DefaultTrackerOptions()
	opts.Estimator.MinAmplitude = cfg.Estimator.MinAmplitude
	opts.Estimator.StaleFactor = cfg.Estimator.StaleFactor
	opts.Synthesizer.PeriodSpeed = cfg.Synthesizer.PeriodSpeed
	opts.Synthesizer.Mode = synthMode
	return opts, nil
}

func buildMode(cfg *config.Config) (control.Mode, error) {
	kind, err := control.ParseKind(cfg.Control.Mode)
	if err != nil {
		return nil, err
	}
	tracker, err := trackerOptions(cfg)
	if err != nil {
		return nil, err
	}
	return control.New(kind, control.Options{
		Tracker: tracker,
		Auto: control.Params{
			Period:    cfg.Control.AutoPeriod,
			Amplitude: cfg.Control.AutoAmplitude,
		},
		AutoStart: cfg.Control.AutoStart,
	})
}

// buildSource creates the configured sample source. The audio source needs
// PortAudio to be initialized.
func buildSource(cfg *config.Config) (source.Source, error) {
	kind, err := source.ParseKind(cfg.Source.Kind)
	if err != nil {
		return nil, err
	}
	sc := cfg.Source
	switch kind {
	case source.KindSynthetic:
		return source.NewSynthetic(source.SyntheticOptions{
			SampleRate: sc.SampleRate,
			Frequency:  sc.Frequency,
			Amplitude:  sc.Amplitude,
			Noise:      sc.Noise,
			Count:      sc.Count,
			Realtime:   sc.Realtime,
			Seed:       uint64(time.Now().UnixNano()),
		})
	case source.KindWAV:
		return source.NewWAV(sc.File, sc.Realtime)
	case source.KindWebSocket:
		return source.NewWebSocket(sc.Address), nil
	case source.KindNATS:
		return source.NewNATS(sc.URL, sc.Subject, sc.SampleRate)
	case source.KindAudio:
		return audio.NewCapture(audio.CaptureOptions{
			Device:     sc.Device,
			SampleRate: sc.SampleRate,
			Gain:       sc.Gain,
		})
	}
	return nil, fmt.Errorf("%w: %q", source.ErrUnknownKind, cfg.Source.Kind)
}

// buildTransports creates the frame-pushing transports. Transports already
// created are closed when a later one fails.
func buildTransports(cfg *config.Config) ([]transport.Transport, error) {
	var transports []transport.Transport
	fail := func(err error) ([]transport.Transport, error) {
		for _, tr := range transports {
			_ = tr.Close()
		}
		return nil, err
	}

	if cfg.Debug {
		// About one frame per second.
		transports = append(transports, transport.NewLoggingTransport(max(1, int(cfg.Engine.FrameRate))))
	}
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, cfg.Engine.FrameRate)
		ws.Start()
		transports = append(transports, ws)
	}
	if cfg.Transport.NATSEnabled {
		nt, err := transport.NewNATSTransport(cfg.Transport.NATSURL, cfg.Transport.NATSSubject)
		if err != nil {
			return fail(err)
		}
		transports = append(transports, nt)
	}
	return transports, nil
}

// udpOutput pairs the publisher with the socket it owns.
type udpOutput struct {
	publisher *udp.UDPPublisher
	sender    *udp.UDPSender
}

// startUDP starts publishing the latest frame of frames to the UDP target.
func startUDP(cfg *config.Config, frames transport.FrameProvider) (*udpOutput, error) {
	sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, frames)
	if err != nil {
		return nil, errors.Join(err, sender.Close())
	}
	publisher.Start()
	return &udpOutput{publisher: publisher, sender: sender}, nil
}

func (u *udpOutput) Close() error {
	return errors.Join(u.publisher.Close(), u.sender.Close())
}

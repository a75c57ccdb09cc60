// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	applog "shaker/internal/log"

	"gopkg.in/yaml.v3"
)

var logger = applog.Named("configuration")

var (
	synthModes   = []string{"rate-limited", "ratelimited", "retrigger", "hard-retrigger"}
	controlModes = []string{"manual", "automatic", "shake"}
	sourceKinds  = []string{"synthetic", "wav", "websocket", "nats", "audio"}
)

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it searches "config.yaml" in the working directory and falls back to
// built-in defaults. Environment overrides are applied after the file and the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		errs = append(errs, fmt.Errorf("log_level %q is not recognised", c.LogLevel))
	}

	if c.Estimator.MinAmplitude < 0 {
		errs = append(errs, fmt.Errorf("estimator.min_amplitude must be >= 0, got %g", c.Estimator.MinAmplitude))
	}
	if c.Estimator.StaleFactor <= 0 {
		errs = append(errs, fmt.Errorf("estimator.stale_factor must be positive, got %g", c.Estimator.StaleFactor))
	}

	if c.Synthesizer.PeriodSpeed <= 0 {
		errs = append(errs, fmt.Errorf("synthesizer.period_speed must be positive, got %g", c.Synthesizer.PeriodSpeed))
	}
	if err := oneOf("synthesizer.mode", c.Synthesizer.Mode, synthModes); err != nil {
		errs = append(errs, err)
	}

	if err := oneOf("control.mode", c.Control.Mode, controlModes); err != nil {
		errs = append(errs, err)
	}
	if strings.EqualFold(c.Control.Mode, "automatic") && c.Control.AutoPeriod <= 0 {
		errs = append(errs, fmt.Errorf("control.auto_period must be positive in automatic mode, got %g", c.Control.AutoPeriod))
	}

	if err := oneOf("source.kind", c.Source.Kind, sourceKinds); err != nil {
		errs = append(errs, err)
	}
	if c.Source.SampleRate < MinSampleRate || c.Source.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("source.sample_rate must be within [%g, %g], got %g", MinSampleRate, MaxSampleRate, c.Source.SampleRate))
	}
	if c.Source.Count < 0 {
		errs = append(errs, fmt.Errorf("source.count must be >= 0, got %d", c.Source.Count))
	}
	if c.Source.Device < MinDeviceID {
		errs = append(errs, fmt.Errorf("source.device must be >= %d, got %d", MinDeviceID, c.Source.Device))
	}
	switch strings.ToLower(c.Source.Kind) {
	case "audio":
		if c.Source.Gain <= 0 {
			errs = append(errs, fmt.Errorf("source.gain must be positive, got %g", c.Source.Gain))
		}
	case "wav":
		if c.Source.File == "" {
			errs = append(errs, errors.New("source.file must be set for the wav source"))
		}
	case "websocket":
		if err := hostPort("source.address", c.Source.Address); err != nil {
			errs = append(errs, err)
		}
	case "nats":
		if c.Source.URL == "" || c.Source.Subject == "" {
			errs = append(errs, errors.New("source.url and source.subject must be set for the nats source"))
		}
	}

	if c.Engine.FrameRate < MinFrameRate || c.Engine.FrameRate > MaxFrameRate {
		errs = append(errs, fmt.Errorf("engine.frame_rate must be within [%g, %g], got %g", MinFrameRate, MaxFrameRate, c.Engine.FrameRate))
	}

	if c.Recording.Enabled && c.Recording.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("recording.sample_rate must be positive, got %d", c.Recording.SampleRate))
	}

	if c.Transport.WebSocketEnabled {
		if err := hostPort("transport.websocket_address", c.Transport.WebSocketAddress); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Transport.UDPEnabled {
		if err := hostPort("transport.udp_target_address", c.Transport.UDPTargetAddress); err != nil {
			errs = append(errs, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.NATSEnabled && (c.Transport.NATSURL == "" || c.Transport.NATSSubject == "") {
		errs = append(errs, errors.New("transport.nats_url and transport.nats_subject must be set when NATS is enabled"))
	}

	return errors.Join(errs...)
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%s %q must be one of %s", field, value, strings.Join(allowed, ", "))
}

func hostPort(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q appears invalid: %w", field, addr, err)
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			logger.Debugf("overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		logger.Debugf("overriding log_level from env: %s", val)
	}

	// ENV_SOURCE_{...}

	// ENV_SOURCE_KIND
	if val, ok := os.LookupEnv("ENV_SOURCE_KIND"); ok {
		cfg.Source.Kind = val
		logger.Debugf("overriding source.kind from env: %s", val)
	}
	// ENV_SOURCE_URL
	if val, ok := os.LookupEnv("ENV_SOURCE_URL"); ok {
		cfg.Source.URL = val
		logger.Debugf("overriding source.url from env: %s", val)
	}

	// ENV_CONTROL_MODE
	if val, ok := os.LookupEnv("ENV_CONTROL_MODE"); ok {
		cfg.Control.Mode = val
		logger.Debugf("overriding control.mode from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			logger.Debugf("overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		logger.Debugf("overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			logger.Debugf("overriding transport.udp_send_interval from env: %s", dur)
		}
	}

	// ENV_NATS_{...}

	// ENV_NATS_ENABLED
	if val, ok := os.LookupEnv("ENV_NATS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.NATSEnabled = bVal
			logger.Debugf("overriding transport.nats_enabled from env: %v", bVal)
		}
	}
	// ENV_NATS_URL
	if val, ok := os.LookupEnv("ENV_NATS_URL"); ok {
		cfg.Transport.NATSURL = val
		logger.Debugf("overriding transport.nats_url from env: %s", val)
	}
}

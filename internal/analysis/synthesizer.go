// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// SynthMode selects how the synthesizer reacts to a new target period.
type SynthMode int

const (
	// ModeRateLimited slews the running period toward the target and
	// re-anchors the phase on every change, so the output never jumps.
	ModeRateLimited SynthMode = iota
	// ModeRetrigger restarts the phase at 0 on every Set.
	ModeRetrigger
)

// String returns the config name of the mode.
func (m SynthMode) String() string {
	switch m {
	case ModeRateLimited:
		return "rate-limited"
	case ModeRetrigger:
		return "retrigger"
	default:
		return "unknown"
	}
}

// ParseSynthMode converts a config name (case-insensitive) to a SynthMode.
func ParseSynthMode(s string) (SynthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rate-limited", "ratelimited":
		return ModeRateLimited, nil
	case "retrigger", "hard-retrigger":
		return ModeRetrigger, nil
	default:
		return ModeRateLimited, fmt.Errorf("unknown synthesizer mode %q", s)
	}
}

const (
	DefaultPeriodSpeed = 1000.0 // ms of period per ms of wall time.
	DefaultAmplitude   = 1.0

	minRunningPeriod = 1e-3 // ms; keeps the sine argument finite.
)

// SynthesizerOptions configures a PhaseSynthesizer.
type SynthesizerOptions struct {
	PeriodSpeed float64   // Maximum |d(runningPeriod)/dt|.
	Mode        SynthMode // Rate-limited (default) or retrigger.
	Amplitude   float64   // Initial target amplitude.
}

// DefaultSynthesizerOptions returns rate-limited options with the default
// period speed and unit amplitude.
func DefaultSynthesizerOptions() SynthesizerOptions {
	return SynthesizerOptions{
		PeriodSpeed: DefaultPeriodSpeed,
		Mode:        ModeRateLimited,
		Amplitude:   DefaultAmplitude,
	}
}

// Synthesizer emits amplitude*sin(2π(t-anchor)/runningPeriod) for a stream
// of frame timestamps. Whenever the running period changes the phase is
// recomputed with the old period and the anchor moved using the new one,
// which keeps sin(phase) and therefore the output unchanged at that instant.
//
// A target of InfinitePeriod freezes the output at its last value.
//
// Synthesizer is not safe for concurrent use.
type Synthesizer struct {
	opts SynthesizerOptions

	targetPeriod    float64
	targetAmplitude float64
	retrigger       bool

	started       bool
	runningPeriod float64
	phase         float64
	anchor        float64
	lastTick      float64
	value         float64
}

// NewSynthesizer creates a Synthesizer. A non-positive PeriodSpeed falls
// back to DefaultPeriodSpeed.
func NewSynthesizer(opts SynthesizerOptions) *Synthesizer {
	if opts.PeriodSpeed <= 0 || math.IsNaN(opts.PeriodSpeed) {
		opts.PeriodSpeed = DefaultPeriodSpeed
	}
	if !isFinite(opts.Amplitude) {
		opts.Amplitude = DefaultAmplitude
	}
	s := &Synthesizer{opts: opts}
	s.Reset()
	return s
}

// Reset returns the synthesizer to its freshly constructed state.
func (s *Synthesizer) Reset() {
	s.targetPeriod = InfinitePeriod
	s.targetAmplitude = s.opts.Amplitude
	s.retrigger = false
	s.started = false
	s.runningPeriod = InfinitePeriod
	s.phase = 0
	s.anchor = 0
	s.lastTick = 0
	s.value = 0
}

// Set hands down a new target. Non-positive or non-finite periods are
// treated as InfinitePeriod; a non-finite amplitude is ignored.
func (s *Synthesizer) Set(period, amplitude float64) {
	if !isFinite(period) || period <= 0 || period > InfinitePeriod {
		period = InfinitePeriod
	}
	s.targetPeriod = period
	if isFinite(amplitude) {
		s.targetAmplitude = amplitude
	}
	if s.opts.Mode == ModeRetrigger {
		s.retrigger = true
	}
}

// Tick advances the synthesizer to frame time t (ms) and returns the output.
func (s *Synthesizer) Tick(t float64) float64 {
	if !isFinite(t) {
		return s.value
	}

	if !s.started {
		if s.targetPeriod == InfinitePeriod {
			return 0
		}
		s.started = true
		s.retrigger = false
		s.anchor = t
		s.lastTick = t
		s.phase = 0
		s.runningPeriod = s.targetPeriod
		s.value = 0
		return 0
	}

	dt := t - s.lastTick
	if dt < 0 {
		return s.value
	}
	s.lastTick = t

	if s.targetPeriod == InfinitePeriod {
		// Hold: elapsed time does not advance the phase while frozen.
		s.anchor += dt
		s.retrigger = false
		return s.value
	}

	if s.opts.Mode == ModeRetrigger {
		if s.retrigger {
			s.retrigger = false
			s.anchor = t
			s.phase = 0
			s.runningPeriod = s.targetPeriod
		}
	} else if next := s.slew(dt); next != s.runningPeriod {
		s.reanchor(t, next)
	}

	s.value = s.targetAmplitude * math.Sin(twoPi*(t-s.anchor)/s.runningPeriod)
	return s.value
}

// slew moves the running period toward the target by at most PeriodSpeed*dt
// without overshooting.
func (s *Synthesizer) slew(dt float64) float64 {
	step := s.opts.PeriodSpeed * dt
	running := s.runningPeriod
	switch {
	case s.targetPeriod > running:
		running = math.Min(running+step, s.targetPeriod)
	case s.targetPeriod < running:
		running = math.Max(running-step, s.targetPeriod)
	}
	return math.Max(running, minRunningPeriod)
}

func (s *Synthesizer) reanchor(t, next float64) {
	s.phase = math.Mod(twoPi*(t-s.anchor)/s.runningPeriod, twoPi)
	if s.phase < 0 {
		s.phase += twoPi
	}
	s.anchor = t - s.phase*next/twoPi
	s.runningPeriod = next
}

// Started reports whether the first finite target has been ticked.
func (s *Synthesizer) Started() bool {
	return s.started
}

// Phase returns the phase (radians, [0, 2π)) captured at the last re-anchor.
func (s *Synthesizer) Phase() float64 {
	return s.phase
}

// RunningPeriod returns the period currently used in the sine argument.
func (s *Synthesizer) RunningPeriod() float64 {
	return s.runningPeriod
}

// TargetPeriod returns the latest period handed down by Set.
func (s *Synthesizer) TargetPeriod() float64 {
	return s.targetPeriod
}

// Amplitude returns the latest target amplitude.
func (s *Synthesizer) Amplitude() float64 {
	return s.targetAmplitude
}

// Value returns the last emitted output.
func (s *Synthesizer) Value() float64 {
	return s.value
}

// Mode returns the configured synthesis mode.
func (s *Synthesizer) Mode() SynthMode {
	return s.opts.Mode
}

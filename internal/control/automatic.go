// SPDX-License-Identifier: MIT
package control

import (
	"fmt"

	"shaker/internal/analysis"
)

// Params is the fixed oscillation of the automatic mode.
type Params struct {
	Period    float64 // ms
	Amplitude float64
}

// AutomaticMode runs a synthesizer at a fixed period and amplitude. It
// outputs 0 while stopped. Not safe for concurrent use.
type AutomaticMode struct {
	params  Params
	synth   *analysis.Synthesizer
	started bool
}

var _ Mode = (*AutomaticMode)(nil)

// NewAutomatic creates a stopped AutomaticMode. The period must be positive
// and below analysis.InfinitePeriod.
func NewAutomatic(p Params, opts analysis.SynthesizerOptions) (*AutomaticMode, error) {
	if p.Period <= 0 || p.Period >= analysis.InfinitePeriod {
		return nil, fmt.Errorf("automatic mode: period %g ms out of range", p.Period)
	}
	if p.Amplitude == 0 {
		p.Amplitude = analysis.DefaultAmplitude
	}
	return &AutomaticMode{params: p, synth: analysis.NewSynthesizer(opts)}, nil
}

func (a *AutomaticMode) Kind() Kind    { return Automatic }
func (a *AutomaticMode) Started() bool { return a.started }

// Params returns the configured oscillation.
func (a *AutomaticMode) Params() Params { return a.params }

// Start begins the oscillation at phase 0 on the next Position call.
func (a *AutomaticMode) Start() {
	if a.started {
		return
	}
	a.started = true
	a.synth.Set(a.params.Period, a.params.Amplitude)
}

// Stop silences the output and forgets the phase.
func (a *AutomaticMode) Stop() {
	if !a.started {
		return
	}
	a.started = false
	a.synth.Reset()
}

// Position returns the synthesized value at t (ms).
func (a *AutomaticMode) Position(t float64) float64 {
	if !a.started {
		return 0
	}
	return a.synth.Tick(t)
}

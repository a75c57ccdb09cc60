// SPDX-License-Identifier: MIT

// Package control provides the interchangeable sources of indicator
// position: a manually set value, a free-running oscillation, and the
// shake tracker driven by acceleration samples.
package control

import (
	"errors"
	"fmt"
	"strings"

	"shaker/internal/analysis"
)

// Kind identifies a control mode.
type Kind int

const (
	Manual Kind = iota
	Automatic
	Shake
)

// ErrUnknownKind is returned by ParseKind for unrecognised names.
var ErrUnknownKind = errors.New("unknown control mode")

// String returns the config name of the kind.
func (k Kind) String() string {
	switch k {
	case Manual:
		return "manual"
	case Automatic:
		return "automatic"
	case Shake:
		return "shake"
	default:
		return "unknown"
	}
}

// ParseKind converts a config name (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return Manual, nil
	case "automatic", "auto":
		return Automatic, nil
	case "shake", "":
		return Shake, nil
	default:
		return Shake, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Mode produces the indicator position for a frame time in milliseconds.
// Start and Stop are idempotent.
type Mode interface {
	Kind() Kind
	Start()
	Stop()
	Started() bool
	Position(t float64) float64
}

// SampleConsumer is implemented by modes that react to acceleration samples.
type SampleConsumer = analysis.SampleProcessor

// Options configures New.
type Options struct {
	Tracker   analysis.TrackerOptions // Shake.
	Auto      Params                  // Automatic.
	AutoStart bool                    // Start Automatic and Shake modes immediately.
}

// New builds the mode for kind.
func New(kind Kind, opts Options) (Mode, error) {
	var m Mode
	switch kind {
	case Manual:
		return NewManual(), nil
	case Automatic:
		a, err := NewAutomatic(opts.Auto, opts.Tracker.Synthesizer)
		if err != nil {
			return nil, err
		}
		m = a
	case Shake:
		m = NewShake(opts.Tracker)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if opts.AutoStart {
		m.Start()
	}
	return m, nil
}

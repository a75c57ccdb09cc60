// SPDX-License-Identifier: MIT
package analysis

import "math"

// InfinitePeriod is the sentinel period (ms) meaning "no oscillation
// detected". It is finite so it can never poison arithmetic.
const InfinitePeriod = 1_000_000.0

const twoPi = 2 * math.Pi

// Sample is one raw sensor reading: T in milliseconds, Y in sensor units.
type Sample struct {
	T float64 `json:"timestamp"`
	Y float64 `json:"value"`
}

// Valid reports whether both fields are finite numbers.
func (s Sample) Valid() bool {
	return isFinite(s.T) && isFinite(s.Y)
}

// SampleProcessor defines the standard interface for components that consume
// raw samples. Implementations are called from the engine's pipeline loop
// and must not block.
type SampleProcessor interface {
	Update(s Sample) Event
}

// PositionSource defines components that produce a waveform value for a
// frame timestamp (ms).
type PositionSource interface {
	Position(t float64) float64
}

// Event describes what a single Update did to the estimate.
type Event int

const (
	EventNone      Event = iota // Sample absorbed, estimate unchanged.
	EventPaused                 // Estimator paused, sample ignored.
	EventDiscarded              // Malformed or out-of-order sample.
	EventCrossing               // First zero crossing, nothing to score yet.
	EventAccepted               // Half-cycle accepted, period updated.
	EventRejected               // Half-cycle below the amplitude gate.
	EventExpired                // Confirmed period went stale.
)

// String returns the string representation of the Event.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventPaused:
		return "paused"
	case EventDiscarded:
		return "discarded"
	case EventCrossing:
		return "crossing"
	case EventAccepted:
		return "accepted"
	case EventRejected:
		return "rejected"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Changed reports whether the event altered the period estimate, i.e. the
// synthesizer target must be refreshed.
func (e Event) Changed() bool {
	return e == EventAccepted || e == EventRejected || e == EventExpired
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

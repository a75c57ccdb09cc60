// SPDX-License-Identifier: MIT
package analysis

import "math"

const (
	DefaultMinAmplitude = 1.0 // Half-cycle peaks at or below this are noise.
	DefaultStaleFactor  = 1.5 // Periods of silence before declaring "stopped".

	// FixedAmplitude is what the estimator hands to the synthesizer.
	FixedAmplitude = 1.0
)

// EstimatorOptions configures a PeriodEstimator.
type EstimatorOptions struct {
	MinAmplitude float64 // Minimum half-cycle extremum magnitude (sensor units).
	StaleFactor  float64 // Multiple of the period after which it decays.
}

// DefaultEstimatorOptions returns the options used by the shake control mode.
func DefaultEstimatorOptions() EstimatorOptions {
	return EstimatorOptions{
		MinAmplitude: DefaultMinAmplitude,
		StaleFactor:  DefaultStaleFactor,
	}
}

// Estimator turns a stream of noisy scalar samples into a period estimate
// by timing interpolated zero crossings. Half-cycles whose extremum does
// not exceed MinAmplitude are treated as noise, and a confirmed period
// decays to InfinitePeriod when no crossing confirms it for StaleFactor
// periods.
//
// Estimator is not safe for concurrent use.
type Estimator struct {
	opts EstimatorOptions

	prev    Sample
	hasPrev bool

	lastCrossing    float64
	hasLastCrossing bool

	minSinceCrossing float64
	maxSinceCrossing float64

	period           float64
	lastPeriodUpdate float64
	hasPeriodUpdate  bool

	halfAmplitude float64
	amplitude     float64

	paused bool
}

// NewEstimator creates an Estimator. A non-positive StaleFactor falls back
// to DefaultStaleFactor; a negative MinAmplitude is treated as 0.
func NewEstimator(opts EstimatorOptions) *Estimator {
	if opts.StaleFactor <= 0 || !isFinite(opts.StaleFactor) {
		opts.StaleFactor = DefaultStaleFactor
	}
	if opts.MinAmplitude < 0 || !isFinite(opts.MinAmplitude) {
		opts.MinAmplitude = 0
	}
	e := &Estimator{opts: opts}
	e.clear()
	return e
}

func (e *Estimator) clear() {
	e.prev = Sample{}
	e.hasPrev = false
	e.lastCrossing = 0
	e.hasLastCrossing = false
	e.minSinceCrossing = 0
	e.maxSinceCrossing = 0
	e.period = InfinitePeriod
	e.lastPeriodUpdate = 0
	e.hasPeriodUpdate = false
	e.halfAmplitude = 0
	e.amplitude = 0
}

// Options returns the effective options.
func (e *Estimator) Options() EstimatorOptions {
	return e.opts
}

// Pause resets the estimator to its initial state and ignores samples until
// Resume is called. Pausing a paused estimator changes nothing.
func (e *Estimator) Pause() {
	if e.paused {
		return
	}
	e.clear()
	e.paused = true
}

// Resume re-enables sample processing.
func (e *Estimator) Resume() {
	e.paused = false
}

// Paused reports whether samples are currently ignored.
func (e *Estimator) Paused() bool {
	return e.paused
}

// Update consumes one sample and reports what it did to the estimate.
func (e *Estimator) Update(s Sample) Event {
	if e.paused {
		return EventPaused
	}
	if !s.Valid() || (e.hasPrev && s.T <= e.prev.T) {
		return EventDiscarded
	}

	event := EventNone
	t, y := s.T, s.Y

	if e.hasPrev && e.prev.Y*y < 0 {
		// prevY and y have opposite signs, so the denominator is never zero.
		t0 := e.prev.T + e.prev.Y*(t-e.prev.T)/(e.prev.Y-y)

		if e.hasLastCrossing {
			event = e.scoreHalfCycle(t0, t, y)
		} else {
			event = EventCrossing
		}

		e.lastCrossing = t0
		e.hasLastCrossing = true
	}

	if y > 0 && y > e.maxSinceCrossing {
		e.maxSinceCrossing = y
	} else if y < 0 && y < e.minSinceCrossing {
		e.minSinceCrossing = y
	}

	if e.hasPeriodUpdate && e.period != InfinitePeriod &&
		t-e.lastPeriodUpdate > e.opts.StaleFactor*e.period {
		e.period = InfinitePeriod
		event = EventExpired
	}

	e.prev = s
	e.hasPrev = true
	return event
}

// scoreHalfCycle closes the half-cycle that ended at crossing t0. The new
// sample y belongs to the half-cycle that is starting, so it seeds that
// accumulator while the scored one is cleared.
func (e *Estimator) scoreHalfCycle(t0, t, y float64) Event {
	// TODO: derive the output amplitude from minSinceCrossing/maxSinceCrossing
	// once the renderer defines how peak acceleration maps to travel.
	e.amplitude = FixedAmplitude

	if y > 0 {
		e.halfAmplitude = -e.minSinceCrossing
		e.maxSinceCrossing = y
		e.minSinceCrossing = 0
	} else {
		e.halfAmplitude = e.maxSinceCrossing
		e.minSinceCrossing = y
		e.maxSinceCrossing = 0
	}

	period := 2 * (t0 - e.lastCrossing)
	if math.Abs(e.halfAmplitude) > e.opts.MinAmplitude && period > 0 && isFinite(period) {
		e.period = period
		e.lastPeriodUpdate = t
		e.hasPeriodUpdate = true
		return EventAccepted
	}

	e.period = InfinitePeriod
	return EventRejected
}

// Period returns the current estimate in ms, or InfinitePeriod.
func (e *Estimator) Period() float64 {
	return e.period
}

// PeriodAt returns the estimate as it would stand at time t, applying the
// staleness rule without mutating state. Samples older than t are assumed
// to have carried no confirming crossing.
func (e *Estimator) PeriodAt(t float64) float64 {
	if e.period == InfinitePeriod || !e.hasPeriodUpdate {
		return e.period
	}
	if t-e.lastPeriodUpdate >= e.opts.StaleFactor*e.period {
		return InfinitePeriod
	}
	return e.period
}

// ExpireAt applies the staleness rule at time t when no sample arrives to do
// it, and reports whether the period expired.
func (e *Estimator) ExpireAt(t float64) bool {
	if e.paused || e.period == InfinitePeriod || !isFinite(t) {
		return false
	}
	if e.PeriodAt(t) != InfinitePeriod {
		return false
	}
	e.period = InfinitePeriod
	return true
}

// Detected reports whether a genuine oscillation is currently confirmed.
func (e *Estimator) Detected() bool {
	return e.period != InfinitePeriod
}

// Amplitude returns the amplitude handed to the synthesizer: 0 until the
// first half-cycle has been scored, FixedAmplitude afterwards.
func (e *Estimator) Amplitude() float64 {
	return e.amplitude
}

// HalfAmplitude returns the extremum of the last scored half-cycle, accepted
// or rejected. Diagnostic only; it may be stale.
func (e *Estimator) HalfAmplitude() float64 {
	return e.halfAmplitude
}

// SPDX-License-Identifier: MIT
package analysis

// TrackerOptions bundles the estimator and synthesizer options.
type TrackerOptions struct {
	Estimator   EstimatorOptions
	Synthesizer SynthesizerOptions
	AutoStart   bool // Start processing immediately after construction.
}

// DefaultTrackerOptions returns default options with AutoStart disabled.
func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{
		Estimator:   DefaultEstimatorOptions(),
		Synthesizer: DefaultSynthesizerOptions(),
	}
}

// TrackerState is a point-in-time copy of a Tracker's observable values.
type TrackerState struct {
	Started       bool
	Period        float64
	RunningPeriod float64
	Amplitude     float64
	Phase         float64
	Value         float64
	HalfAmplitude float64
	Detected      bool
}

// Tracker composes an Estimator and a Synthesizer into the shake pipeline:
// samples go in through Update, waveform values come out of Position. The
// only coupling between the two halves is the (period, amplitude) pair
// handed over whenever the estimate changes.
//
// Tracker is not safe for concurrent use; the engine drives it from a
// single goroutine.
type Tracker struct {
	estimator   *Estimator
	synthesizer *Synthesizer
	stopped     bool

	// Frame time and sample time come from different clocks. The first
	// Position call after a sample maps one onto the other, so staleness
	// can be judged while samples are missing.
	lastSampleT float64
	pending     bool
	synced      bool
	clockOffset float64
}

var _ SampleProcessor = (*Tracker)(nil)
var _ PositionSource = (*Tracker)(nil)

// NewTracker creates a Tracker, stopped unless opts.AutoStart is set.
func NewTracker(opts TrackerOptions) *Tracker {
	t := &Tracker{
		estimator:   NewEstimator(opts.Estimator),
		synthesizer: NewSynthesizer(opts.Synthesizer),
	}
	if !opts.AutoStart {
		t.Stop()
	}
	return t
}

// Start resumes sample processing. Starting a started tracker is a no-op.
func (t *Tracker) Start() {
	if !t.stopped {
		return
	}
	t.stopped = false
	t.estimator.Resume()
}

// Stop resets both halves to their initial state and ignores samples until
// Start is called. Stopping a stopped tracker is a no-op.
func (t *Tracker) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.estimator.Pause()
	t.synthesizer.Reset()
	t.lastSampleT = 0
	t.pending = false
	t.synced = false
	t.clockOffset = 0
}

// Started reports whether the tracker is processing samples.
func (t *Tracker) Started() bool {
	return !t.stopped
}

// Update feeds one sample to the estimator and forwards any change of the
// estimate to the synthesizer.
func (t *Tracker) Update(s Sample) Event {
	if t.stopped {
		return EventPaused
	}
	event := t.estimator.Update(s)
	if event != EventDiscarded {
		t.lastSampleT = s.T
		t.pending = true
	}
	if event.Changed() {
		t.synthesizer.Set(t.estimator.Period(), t.estimator.Amplitude())
	}
	return event
}

// Position returns the synthesized waveform value at frame time ft (ms), or
// 0 while stopped. A period whose samples stopped arriving expires here
// StaleFactor periods after its last confirmation, measured on the sample
// clock.
func (t *Tracker) Position(ft float64) float64 {
	if t.stopped {
		return 0
	}
	if t.pending && isFinite(ft) {
		t.clockOffset = t.lastSampleT - ft
		t.pending = false
		t.synced = true
	}
	if t.synced && t.estimator.ExpireAt(ft+t.clockOffset) {
		t.synthesizer.Set(InfinitePeriod, t.estimator.Amplitude())
	}
	return t.synthesizer.Tick(ft)
}

// Period returns the estimator's current period or InfinitePeriod.
func (t *Tracker) Period() float64 {
	return t.estimator.Period()
}

// Amplitude returns the synthesizer's target amplitude.
func (t *Tracker) Amplitude() float64 {
	return t.synthesizer.Amplitude()
}

// Phase returns the synthesizer phase captured at the last re-anchor.
func (t *Tracker) Phase() float64 {
	return t.synthesizer.Phase()
}

// HalfAmplitude returns the last scored half-cycle extremum.
func (t *Tracker) HalfAmplitude() float64 {
	return t.estimator.HalfAmplitude()
}

// Detected reports whether an oscillation is currently confirmed.
func (t *Tracker) Detected() bool {
	return t.estimator.Detected()
}

// State returns a snapshot of the tracker's observable values.
func (t *Tracker) State() TrackerState {
	return TrackerState{
		Started:       !t.stopped,
		Period:        t.estimator.Period(),
		RunningPeriod: t.synthesizer.RunningPeriod(),
		Amplitude:     t.synthesizer.Amplitude(),
		Phase:         t.synthesizer.Phase(),
		Value:         t.synthesizer.Value(),
		HalfAmplitude: t.estimator.HalfAmplitude(),
		Detected:      t.estimator.Detected(),
	}
}

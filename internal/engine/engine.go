// SPDX-License-Identifier: MIT
/*
Package engine runs the shaker pipeline:

	source --samples--> mode (tracker) --frames--> transports
	                                    \-> snapshot (monitor, UDP)

A single goroutine owns the control mode. Samples, frame ticks and
commands are multiplexed with one select, so the tracker needs no locks.
Observers read the latest Snapshot through an atomic pointer.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"shaker/internal/analysis"
	"shaker/internal/config"
	"shaker/internal/control"
	applog "shaker/internal/log"
	"shaker/internal/source"
	"shaker/internal/transport"

	"github.com/google/uuid"
)

var logger = applog.Named("engine")

// Frame is the record sent to transports.
type Frame = transport.Frame

const (
	sampleQueue  = 256
	commandQueue = 16
)

// Snapshot is the engine state after the latest frame.
type Snapshot struct {
	Frame     Frame
	Stats     analysis.PeriodSummary
	LastEvent analysis.Event
	Samples   uint64
	Discarded uint64
	Recording bool
}

type command int

const (
	cmdToggle command = iota
	cmdStart
	cmdStop
)

// Engine connects a sample source, a control mode and transports.
type Engine struct {
	config     *config.Config
	mode       control.Mode
	source     source.Source
	transports []transport.Transport

	session   string
	interval  time.Duration
	stats     *analysis.PeriodStats
	recorder  *Recorder
	commands  chan command
	snapshot  atomic.Pointer[Snapshot]
	startTime time.Time

	// Owned by the Run goroutine.
	seq       uint64
	samples   uint64
	discarded uint64
	lastEvent analysis.Event
}

var _ transport.FrameProvider = (*Engine)(nil)

// NewEngine creates an engine. Recording starts immediately when enabled
// in cfg.
func NewEngine(cfg *config.Config, mode control.Mode, src source.Source, transports ...transport.Transport) (*Engine, error) {
	if cfg == nil || mode == nil || src == nil {
		return nil, errors.New("engine: config, mode and source are required")
	}
	if cfg.Engine.FrameRate <= 0 {
		return nil, fmt.Errorf("engine: invalid frame rate %g", cfg.Engine.FrameRate)
	}

	e := &Engine{
		config:     cfg,
		mode:       mode,
		source:     src,
		transports: transports,
		session:    uuid.NewString(),
		interval:   time.Duration(float64(time.Second) / cfg.Engine.FrameRate),
		stats:      analysis.NewPeriodStats(analysis.DefaultStatsCapacity),
		commands:   make(chan command, commandQueue),
	}

	if cfg.Recording.Enabled {
		path := cfg.Recording.OutputFile
		if path == "" {
			path = DefaultRecordingName(time.Now())
		}
		rec, err := NewRecorder(path, cfg.Recording.SampleRate)
		if err != nil {
			return nil, err
		}
		e.recorder = rec
		logger.Infof("recording samples to %s", path)
	}

	logger.Infof("session %s: %s mode, %.0f frames/s", e.session, mode.Kind(), cfg.Engine.FrameRate)
	return e, nil
}

// Session returns the session id stamped on every frame.
func (e *Engine) Session() string { return e.session }

// Mode returns the control mode.
func (e *Engine) Mode() control.Mode { return e.mode }

// FrameInterval returns the time between frames.
func (e *Engine) FrameInterval() time.Duration { return e.interval }

// RecordingPath returns the WAV file samples are recorded to, or "" when
// recording is off.
func (e *Engine) RecordingPath() string {
	if e.recorder == nil {
		return ""
	}
	return e.recorder.Path()
}

// Latest returns the snapshot of the latest frame, or nil before the first.
func (e *Engine) Latest() *Snapshot {
	return e.snapshot.Load()
}

// LatestFrame implements transport.FrameProvider.
func (e *Engine) LatestFrame() (Frame, bool) {
	s := e.snapshot.Load()
	if s == nil {
		return Frame{}, false
	}
	return s.Frame, true
}

// Toggle starts the mode if stopped and stops it otherwise.
func (e *Engine) Toggle() { e.enqueue(cmdToggle) }

// Start starts the mode.
func (e *Engine) Start() { e.enqueue(cmdStart) }

// Stop stops the mode.
func (e *Engine) Stop() { e.enqueue(cmdStop) }

func (e *Engine) enqueue(c command) {
	select {
	case e.commands <- c:
	default:
		logger.Warnf("command queue full, dropping command %d", c)
	}
}

// NudgeManual moves the manual position by delta. It reports false when
// the mode is not manual.
func (e *Engine) NudgeManual(delta float64) bool {
	m, ok := e.mode.(*control.ManualMode)
	if ok {
		m.Nudge(delta)
	}
	return ok
}

// SetManualPosition sets the manual position. It reports false when the
// mode is not manual.
func (e *Engine) SetManualPosition(p float64) bool {
	m, ok := e.mode.(*control.ManualMode)
	if ok {
		m.SetPosition(p)
	}
	return ok
}

// Run processes samples and renders frames until ctx is cancelled or the
// source ends. It returns the source's error, if any.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples := make(chan analysis.Sample, sampleQueue)
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- e.source.Run(ctx, samples)
	}()

	e.startTime = time.Now()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case s := <-samples:
			e.handleSample(s)

		case now := <-ticker.C:
			e.renderFrame(e.elapsedMs(now))

		case c := <-e.commands:
			e.handleCommand(c)

		case err := <-srcErr:
			// The source no longer writes; drain what it left behind.
			for drained := false; !drained; {
				select {
				case s := <-samples:
					e.handleSample(s)
				default:
					drained = true
				}
			}
			e.renderFrame(e.elapsedMs(time.Now()))
			if err != nil {
				return fmt.Errorf("engine: source: %w", err)
			}
			logger.Infof("source finished after %d samples", e.samples)
			return nil
		}
	}
}

func (e *Engine) elapsedMs(now time.Time) float64 {
	return float64(now.Sub(e.startTime)) / float64(time.Millisecond)
}

// handleSample records the sample and feeds it to the mode.
func (e *Engine) handleSample(s analysis.Sample) {
	e.samples++
	if e.recorder != nil && s.Valid() {
		if err := e.recorder.Write(s.Y); err != nil {
			logger.Errorf("recording: %v", err)
		}
	}

	consumer, ok := e.mode.(control.SampleConsumer)
	if !ok {
		return
	}
	event := consumer.Update(s)
	switch event {
	case analysis.EventDiscarded:
		e.discarded++
	case analysis.EventAccepted:
		if sh, ok := e.mode.(*control.ShakeMode); ok {
			e.stats.Add(sh.Period())
		}
	}
	if event.Changed() {
		e.lastEvent = event
		if applog.DebugEnabled() {
			logger.Debugf("t=%.1fms %s", s.T, event)
		}
	}
}

func (e *Engine) handleCommand(c command) {
	switch c {
	case cmdToggle:
		if e.mode.Started() {
			e.stop()
		} else {
			e.start()
		}
	case cmdStart:
		e.start()
	case cmdStop:
		e.stop()
	}
}

func (e *Engine) start() {
	if e.mode.Started() {
		return
	}
	e.mode.Start()
	logger.Infof("%s mode started", e.mode.Kind())
}

func (e *Engine) stop() {
	if !e.mode.Started() {
		return
	}
	e.mode.Stop()
	e.stats.Reset()
	e.lastEvent = analysis.EventNone
	logger.Infof("%s mode stopped", e.mode.Kind())
}

// renderFrame samples the mode at t, publishes the snapshot and sends the
// frame to every transport. Send failures are logged and otherwise ignored.
func (e *Engine) renderFrame(t float64) {
	e.seq++
	frame := e.describe(t)
	summary := e.stats.Summary()
	frame.PeriodMeanMs = summary.Mean
	frame.PeriodStdDevMs = summary.StdDev

	e.snapshot.Store(&Snapshot{
		Frame:     frame,
		Stats:     summary,
		LastEvent: e.lastEvent,
		Samples:   e.samples,
		Discarded: e.discarded,
		Recording: e.recorder != nil,
	})

	for _, tr := range e.transports {
		if err := tr.Send(frame); err != nil {
			logger.Warnf("transport %T: %v", tr, err)
		}
	}
}

// describe builds the frame for the current mode at t.
func (e *Engine) describe(t float64) Frame {
	f := Frame{
		Session:  e.session,
		Seq:      e.seq,
		TimeMs:   t,
		Mode:     e.mode.Kind().String(),
		Started:  e.mode.Started(),
		Position: e.mode.Position(t),
		PeriodMs: analysis.InfinitePeriod,
	}

	switch m := e.mode.(type) {
	case *control.ShakeMode:
		st := m.State()
		f.PeriodMs = st.Period
		f.Amplitude = st.Amplitude
		f.Phase = st.Phase
		f.Detected = st.Detected
		f.HalfAmplitude = st.HalfAmplitude
	case *control.AutomaticMode:
		if m.Started() {
			p := m.Params()
			f.PeriodMs = p.Period
			f.Amplitude = p.Amplitude
			f.Detected = true
		}
	}
	if f.PeriodMs > 0 && f.PeriodMs < analysis.InfinitePeriod {
		f.FrequencyHz = 1000 / f.PeriodMs
	}
	return f
}

// Close stops recording and closes the source and all transports.
func (e *Engine) Close() error {
	var errs []error
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("recording: %w", err))
		} else {
			logger.Infof("recording saved to %s (%d samples)", e.recorder.Path(), e.recorder.Written())
		}
	}
	if err := e.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	for _, tr := range e.transports {
		if err := tr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transport %T: %w", tr, err))
		}
	}
	return errors.Join(errs...)
}

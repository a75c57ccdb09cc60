// SPDX-License-Identifier: MIT
package source

import (
	"math"
	"sync"
	"time"
)

// rebaseMs is how far a segment's clock may fall behind the timeline before
// it is treated as reset. Smaller jitter is left to the estimator.
const rebaseMs = 1000

// timeline maps the clocks of sensor connections onto one increasing source
// clock. Each connection is a segment: a client that reconnects restarts its
// own clock near zero, so its first sample is placed after the newest sample
// seen so far, separated by the wall time in between.
type timeline struct {
	mu     sync.Mutex
	now    func() time.Time
	lastT  float64
	lastAt time.Time
	seen   bool
}

func newTimeline(now func() time.Time) *timeline {
	return &timeline{now: now}
}

type segment struct {
	tl     *timeline
	offset float64
	based  bool
}

func (tl *timeline) segment() *segment {
	return &segment{tl: tl}
}

// place returns t on the timeline's clock. The first segment keeps its own
// timestamps.
func (sg *segment) place(t float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return t
	}
	tl := sg.tl
	tl.mu.Lock()
	defer tl.mu.Unlock()

	now := tl.now()
	mapped := t + sg.offset
	if tl.seen && (!sg.based || mapped < tl.lastT-rebaseMs) {
		gap := max(1, float64(now.Sub(tl.lastAt))/float64(time.Millisecond))
		sg.offset = tl.lastT + gap - t
		mapped = t + sg.offset
		if sg.based {
			logger.Debugf("clock reset, rebased segment by %.1f ms", sg.offset)
		}
	}
	sg.based = true

	if !tl.seen || mapped > tl.lastT {
		tl.lastT = mapped
	}
	tl.lastAt = now
	tl.seen = true
	return mapped
}

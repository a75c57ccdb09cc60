// SPDX-License-Identifier: MIT
package control

import (
	"math"
	"sync/atomic"
)

// ManualMode reports a position set from outside, e.g. by the monitor's
// arrow keys. It is always started and safe for concurrent use.
type ManualMode struct {
	bits atomic.Uint64
}

var _ Mode = (*ManualMode)(nil)

// NewManual creates a ManualMode at position 0.
func NewManual() *ManualMode {
	return &ManualMode{}
}

func (m *ManualMode) Kind() Kind    { return Manual }
func (m *ManualMode) Start()        {}
func (m *ManualMode) Stop()         {}
func (m *ManualMode) Started() bool { return true }

// SetPosition stores p clamped to [-1, 1]. NaN is ignored.
func (m *ManualMode) SetPosition(p float64) {
	if math.IsNaN(p) {
		return
	}
	p = math.Max(-1, math.Min(1, p))
	m.bits.Store(math.Float64bits(p))
}

// Nudge moves the position by delta, clamped to [-1, 1].
func (m *ManualMode) Nudge(delta float64) {
	for {
		old := m.bits.Load()
		p := math.Max(-1, math.Min(1, math.Float64frombits(old)+delta))
		if math.IsNaN(p) || m.bits.CompareAndSwap(old, math.Float64bits(p)) {
			return
		}
	}
}

// Position returns the stored position regardless of t.
func (m *ManualMode) Position(float64) float64 {
	return math.Float64frombits(m.bits.Load())
}

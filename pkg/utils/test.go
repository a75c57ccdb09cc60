// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// MockTransport records everything sent to it for later inspection.
type MockTransport struct {
	mu     sync.Mutex
	frames []any
	closed bool
}

// Send stores the data instead of transmitting it.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Frames returns a copy of everything sent so far.
func (m *MockTransport) Frames() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.frames))
	copy(out, m.frames)
	return out
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SineSamples returns count timestamps (ms) and values of
// amplitude*sin(2π·freqHz·t + phase) sampled at sampleRateHz.
func SineSamples(count int, sampleRateHz, freqHz, amplitude, phase float64) (ts, ys []float64) {
	ts = make([]float64, count)
	ys = make([]float64, count)
	for i := range count {
		sec := float64(i) / sampleRateHz
		ts[i] = sec * 1000
		ys[i] = amplitude * math.Sin(2*math.Pi*freqHz*sec+phase)
	}
	return ts, ys
}

// NoisySineSamples is SineSamples with uniform noise in [-noise, noise] and
// timestamp jitter in [-jitterMs, jitterMs], deterministic for a given seed.
// Jitter is capped below half the sample spacing so time stays monotonic.
func NoisySineSamples(count int, sampleRateHz, freqHz, amplitude, noise, jitterMs float64, seed uint64) (ts, ys []float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	spacing := 1000 / sampleRateHz
	jitterMs = math.Min(jitterMs, spacing*0.45)

	ts, ys = SineSamples(count, sampleRateHz, freqHz, amplitude, 0)
	for i := range ts {
		ts[i] += (rng.Float64()*2 - 1) * jitterMs
		ys[i] += (rng.Float64()*2 - 1) * noise
	}
	return ts, ys
}

// MaxStep returns the largest absolute difference between consecutive values.
func MaxStep(values []float64) float64 {
	maxStep := 0.0
	for i := 1; i < len(values); i++ {
		if d := math.Abs(values[i] - values[i-1]); d > maxStep {
			maxStep = d
		}
	}
	return maxStep
}

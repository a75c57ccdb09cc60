// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"shaker/internal/analysis"
)

// SyntheticOptions describes a noisy sine shake.
type SyntheticOptions struct {
	SampleRate float64 // Hz
	Frequency  float64 // Hz
	Amplitude  float64
	Noise      float64 // Peak of the uniform noise added to every sample.
	Count      int     // Samples to emit, 0 for unlimited.
	Realtime   bool    // Pace emission at SampleRate.
	Seed       uint64
}

// Synthetic generates y = A*sin(2πft) + noise at a fixed rate. Timestamps
// follow the nominal schedule i*1000/SampleRate regardless of pacing.
type Synthetic struct {
	opts SyntheticOptions
	rng  *rand.Rand
}

var _ Source = (*Synthetic)(nil)

// NewSynthetic validates opts and creates the generator.
func NewSynthetic(opts SyntheticOptions) (*Synthetic, error) {
	if opts.SampleRate <= 0 || math.IsInf(opts.SampleRate, 0) || math.IsNaN(opts.SampleRate) {
		return nil, fmt.Errorf("synthetic source: invalid sample rate %g", opts.SampleRate)
	}
	if opts.Frequency < 0 || opts.Count < 0 || opts.Noise < 0 {
		return nil, errors.New("synthetic source: frequency, count and noise must be non-negative")
	}
	return &Synthetic{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// At returns the noiseless value at t (ms).
func (s *Synthetic) At(t float64) float64 {
	return s.opts.Amplitude * math.Sin(2*math.Pi*s.opts.Frequency*t/1000)
}

// Run emits samples until Count is reached or ctx is cancelled.
func (s *Synthetic) Run(ctx context.Context, out chan<- analysis.Sample) error {
	var tick <-chan time.Time
	if s.opts.Realtime {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opts.SampleRate))
		defer ticker.Stop()
		tick = ticker.C
	}

	stepMs := 1000 / s.opts.SampleRate
	logger.Infof("synthetic: %.2f Hz shake at %.1f samples/s", s.opts.Frequency, s.opts.SampleRate)

	for i := 0; s.opts.Count == 0 || i < s.opts.Count; i++ {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return nil
			}
		}
		t := float64(i) * stepMs
		y := s.At(t)
		if s.opts.Noise > 0 {
			y += s.opts.Noise * (2*s.rng.Float64() - 1)
		}
		if err := emit(ctx, out, analysis.Sample{T: t, Y: y}); err != nil {
			return nil
		}
	}
	return nil
}

// Close is a no-op.
func (s *Synthetic) Close() error { return nil }

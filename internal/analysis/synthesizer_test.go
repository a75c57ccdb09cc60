// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizerNotStartedWithoutPeriod(t *testing.T) {
	s := NewSynthesizer(DefaultSynthesizerOptions())
	for _, ft := range []float64{0, 10, 1000} {
		assert.Zero(t, s.Tick(ft))
	}
	assert.False(t, s.Started())
	assert.Zero(t, s.Phase())
}

func TestSynthesizerStartsAtZero(t *testing.T) {
	s := NewSynthesizer(DefaultSynthesizerOptions())
	s.Set(400, 1)

	assert.Zero(t, s.Tick(1000))
	require.True(t, s.Started())
	assert.Equal(t, 400.0, s.RunningPeriod())

	assert.InDelta(t, 1.0, s.Tick(1100), 1e-9)
	assert.InDelta(t, 0.0, s.Tick(1200), 1e-9)
	assert.InDelta(t, -1.0, s.Tick(1300), 1e-9)
}

func TestSynthesizerPhaseContinuity(t *testing.T) {
	const (
		oldPeriod = 1000.0
		newPeriod = 300.0
		step      = 1.0
	)

	// Any sine with period >= newPeriod moves at most 2π/newPeriod per ms.
	maxStep := twoPi / newPeriod * step * 1.01

	s := NewSynthesizer(SynthesizerOptions{PeriodSpeed: 1e9, Amplitude: 1})
	s.Set(oldPeriod, 1)

	prev := s.Tick(0)
	for ft := step; ft <= 3000; ft += step {
		if ft == 1234 {
			s.Set(newPeriod, 1)
		}
		v := s.Tick(ft)
		require.LessOrEqual(t, math.Abs(v-prev), maxStep, "jump at t=%.0f", ft)
		require.LessOrEqual(t, math.Abs(v), 1.0)
		prev = v
	}
	assert.Equal(t, newPeriod, s.RunningPeriod())
}

func TestSynthesizerReanchorKeepsValue(t *testing.T) {
	s := NewSynthesizer(SynthesizerOptions{PeriodSpeed: 1e9, Amplitude: 1})
	s.Set(1000, 1)
	s.Tick(0)
	before := s.Tick(1234)

	s.Set(300, 1)
	after := s.Tick(1234 + 1e-6)

	assert.InDelta(t, before, after, 1e-4)
	assert.InDelta(t, math.Mod(twoPi*1234/1000, twoPi), s.Phase(), 1e-4)
}

func TestSynthesizerRateLimit(t *testing.T) {
	s := NewSynthesizer(SynthesizerOptions{PeriodSpeed: 1, Amplitude: 1})
	s.Set(1000, 1)
	s.Tick(0)

	s.Set(500, 1)
	tests := []struct {
		t       float64
		running float64
	}{
		{100, 900},
		{200, 800},
		{450, 550},
		{600, 500}, // Clamped, never overshoots.
		{900, 500},
	}
	for _, tt := range tests {
		s.Tick(tt.t)
		assert.InDelta(t, tt.running, s.RunningPeriod(), 1e-9, "t=%.0f", tt.t)
	}

	s.Set(700, 1)
	s.Tick(1000)
	assert.InDelta(t, 600.0, s.RunningPeriod(), 1e-9)
	s.Tick(2000)
	assert.InDelta(t, 700.0, s.RunningPeriod(), 1e-9)
}

func TestSynthesizerFreezesOnInfinitePeriod(t *testing.T) {
	s := NewSynthesizer(DefaultSynthesizerOptions())
	s.Set(400, 1)
	s.Tick(0)
	held := s.Tick(50)
	require.InDelta(t, math.Sin(twoPi*50/400), held, 1e-9)

	s.Set(InfinitePeriod, 1)
	for ft := 60.0; ft < 5000; ft += 16 {
		v := s.Tick(ft)
		require.False(t, math.IsNaN(v))
		require.Equal(t, held, v)
	}

	// Resuming continues from the held value.
	s.Set(400, 1)
	v := s.Tick(5001)
	assert.InDelta(t, held, v, twoPi/400*((5001-4988)+1))
}

func TestSynthesizerRejectsBadInput(t *testing.T) {
	s := NewSynthesizer(DefaultSynthesizerOptions())

	s.Set(0, 1)
	assert.Equal(t, InfinitePeriod, s.TargetPeriod())
	s.Set(-5, 1)
	assert.Equal(t, InfinitePeriod, s.TargetPeriod())
	s.Set(math.NaN(), math.NaN())
	assert.Equal(t, InfinitePeriod, s.TargetPeriod())
	assert.Equal(t, DefaultAmplitude, s.Amplitude())

	s.Set(400, 1)
	s.Tick(100)
	v := s.Tick(150)
	assert.Equal(t, v, s.Tick(120), "backwards frame time holds the value")
	assert.Equal(t, v, s.Tick(math.Inf(1)))
}

func TestSynthesizerRetrigger(t *testing.T) {
	s := NewSynthesizer(SynthesizerOptions{Mode: ModeRetrigger, Amplitude: 1})
	require.Equal(t, ModeRetrigger, s.Mode())

	s.Set(1000, 1)
	s.Tick(0)
	before := s.Tick(240)
	require.Greater(t, before, 0.9)

	s.Set(300, 1)
	assert.Zero(t, s.Tick(250), "phase restarts at 0")
	assert.Equal(t, 300.0, s.RunningPeriod())
	assert.InDelta(t, 1.0, s.Tick(325), 1e-9)
}

func TestSynthesizerRetriggerEverySet(t *testing.T) {
	s := NewSynthesizer(SynthesizerOptions{Mode: ModeRetrigger, Amplitude: 1})
	s.Set(400, 1)
	s.Tick(0)

	// The tracker sets the period on each accepted half-cycle, so an
	// unchanged period still restarts the wave.
	require.InDelta(t, 1.0, s.Tick(100), 1e-9)
	s.Set(400, 1)
	assert.Zero(t, s.Tick(200))
	assert.InDelta(t, 1.0, s.Tick(300), 1e-9)
}

func TestSynthesizerReset(t *testing.T) {
	s := NewSynthesizer(DefaultSynthesizerOptions())
	fresh := *s

	s.Set(400, 1)
	s.Tick(0)
	s.Tick(130)
	s.Reset()

	assert.Equal(t, fresh, *s)
}

func TestParseSynthMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SynthMode
		wantErr bool
	}{
		{"", ModeRateLimited, false},
		{"Rate-Limited", ModeRateLimited, false},
		{"retrigger", ModeRetrigger, false},
		{"hard-retrigger", ModeRetrigger, false},
		{"sawtooth", ModeRateLimited, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSynthMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) SynthMode {
	t.Helper()
	m, err := ParseSynthMode(s)
	require.NoError(t, err)
	return m
}

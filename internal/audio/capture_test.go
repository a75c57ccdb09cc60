// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"testing"

	"shaker/internal/analysis"
)

func TestBlockMean(t *testing.T) {
	tests := []struct {
		name     string
		in       []int32
		channels int
		want     float64
	}{
		{"empty", nil, 1, 0},
		{"mono", []int32{1, 2, 3, 6}, 1, 3},
		{"stereo uses first channel", []int32{10, -99, 20, -99, 30, -99}, 2, 20},
		{"zero channels treated as mono", []int32{4, 8}, 0, 6},
		{"no overflow", []int32{2147483647, 2147483647}, 1, 2147483647},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := blockMean(tt.in, tt.channels); got != tt.want {
				t.Errorf("blockMean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessEmitsOneSamplePerBlock(t *testing.T) {
	out := make(chan analysis.Sample, 2)
	c := &Capture{
		opts:     CaptureOptions{Gain: 10},
		channels: 1,
		blockMs:  16,
		out:      out,
	}

	half := int32(fullScale / 2)
	c.process([]int32{half, half})
	c.process([]int32{-half, -half})
	c.process([]int32{0}) // Channel full: dropped.

	first, second := <-out, <-out
	if first.T != 0 || first.Y != 5 {
		t.Errorf("first sample = %+v, want {T:0 Y:5}", first)
	}
	if second.T != 16 || second.Y != -5 {
		t.Errorf("second sample = %+v, want {T:16 Y:-5}", second)
	}
	if c.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", c.Dropped())
	}
}

func TestProcessHotPath(t *testing.T) {
	out := make(chan analysis.Sample, 1)
	c := &Capture{opts: CaptureOptions{Gain: 1}, channels: 2, blockMs: 1, out: out}
	block := make([]int32, 512)

	allocs := testing.AllocsPerRun(100, func() {
		c.process(block)
		select {
		case <-out:
		default:
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in the capture callback, got %.1f", allocs)
	}
}

func TestWriteDevices(t *testing.T) {
	var buf bytes.Buffer
	WriteDevices(&buf, []Device{
		{ID: 0, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 48000, LowInputLatencyMs: 2.5},
		{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	})
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Mic (Input)",
		"Default sample rate: 48000 Hz",
		"Latency: Low=2.50ms",
		"[1] Speakers (Output)",
	} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDeviceType(t *testing.T) {
	if got := (Device{MaxInputChannels: 2, MaxOutputChannels: 2}).Type(); got != "Input/Output" {
		t.Errorf("Type() = %q", got)
	}
	if got := (Device{}).Type(); got != "" {
		t.Errorf("Type() = %q, want empty", got)
	}
}

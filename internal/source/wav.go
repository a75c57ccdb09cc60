// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"shaker/internal/analysis"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorded samples are stored as 32-bit PCM with a fixed-point scale, so
// accelerations up to ±32768 survive with 1/65536 resolution.
const (
	SampleScale    = 1 << 16
	RecordBitDepth = 32
)

// EncodeSample converts an acceleration to its 32-bit PCM representation,
// saturating at the integer range.
func EncodeSample(y float64) int {
	v := math.Round(y * SampleScale)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// DecodeSample converts a PCM value of the given bit depth back to an
// acceleration. Lower bit depths are scaled up to 32 bits first.
func DecodeSample(v int, bitDepth int) float64 {
	if bitDepth <= 0 || bitDepth > RecordBitDepth {
		bitDepth = RecordBitDepth
	}
	return float64(v) * float64(int64(1)<<(RecordBitDepth-bitDepth)) / SampleScale
}

// WAV replays a recording made by the engine (or any PCM WAV file). Only the
// first channel is used; timestamps are i*1000/SampleRate.
type WAV struct {
	path     string
	file     *os.File
	decoder  *wav.Decoder
	realtime bool
}

var _ Source = (*WAV)(nil)

// NewWAV opens path and validates its header.
func NewWAV(path string, realtime bool) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav source: %w", err)
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wav source: %s is not a valid WAV file", path)
	}
	d.ReadInfo()
	if d.SampleRate == 0 || d.NumChans == 0 {
		f.Close()
		return nil, fmt.Errorf("wav source: %s has an empty format", path)
	}
	return &WAV{path: path, file: f, decoder: d, realtime: realtime}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (w *WAV) SampleRate() int { return int(w.decoder.SampleRate) }

// Run emits every sample in the file, then returns nil.
func (w *WAV) Run(ctx context.Context, out chan<- analysis.Sample) error {
	rate := float64(w.decoder.SampleRate)
	channels := int(w.decoder.NumChans)
	bitDepth := int(w.decoder.BitDepth)
	stepMs := 1000 / rate

	var tick <-chan time.Time
	if w.realtime {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	buf := &audio.IntBuffer{
		Format: w.decoder.Format(),
		Data:   make([]int, 1024*channels),
	}

	logger.Infof("wav: replaying %s (%d Hz, %d bit, %d ch)", w.path, int(rate), bitDepth, channels)

	i := 0
	for {
		n, err := w.decoder.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("wav source: decode %s: %w", w.path, err)
		}
		if n == 0 {
			return nil
		}
		for j := 0; j+channels <= n; j += channels {
			if tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return nil
				}
			}
			s := analysis.Sample{T: float64(i) * stepMs, Y: DecodeSample(buf.Data[j], bitDepth)}
			if err := emit(ctx, out, s); err != nil {
				return nil
			}
			i++
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// Close closes the underlying file.
func (w *WAV) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

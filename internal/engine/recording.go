// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"shaker/internal/source"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recordBufferFrames is the number of samples buffered before a WAV write.
const recordBufferFrames = 256

// Recorder writes raw acceleration samples to a mono 32-bit WAV file at a
// nominal sample rate, so a session can be replayed with the wav source.
type Recorder struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	n       int // Buffered samples.
	written int
}

// DefaultRecordingName returns samples-DD-MM-YYYY-HHMMSS.wav for now.
func DefaultRecordingName(now time.Time) string {
	return "samples-" + now.UTC().Format("02-01-2006-150405") + ".wav"
}

// NewRecorder creates path and writes the WAV header.
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("recorder: invalid sample rate %d", sampleRate)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, source.RecordBitDepth, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, recordBufferFrames),
			SourceBitDepth: source.RecordBitDepth,
		},
	}, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string { return r.path }

// Written returns the number of samples accepted so far.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written + r.n
}

// Write buffers one sample, flushing to the encoder when the buffer fills.
func (r *Recorder) Write(y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return errors.New("recorder: closed")
	}
	r.buf.Data[r.n] = source.EncodeSample(y)
	r.n++
	if r.n == len(r.buf.Data) {
		return r.flush()
	}
	return nil
}

func (r *Recorder) flush() error {
	if r.n == 0 {
		return nil
	}
	full := r.buf.Data
	r.buf.Data = full[:r.n]
	err := r.encoder.Write(r.buf)
	r.buf.Data = full
	r.written += r.n
	r.n = 0
	return err
}

// Close flushes buffered samples and finalizes the WAV header.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return nil
	}
	err := r.flush()
	if cerr := r.encoder.Close(); err == nil {
		err = cerr
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.encoder = nil
	r.file = nil
	return err
}

// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"shaker/internal/analysis"
	applog "shaker/internal/log"

	"github.com/gordonklaus/portaudio"
)

var logger = applog.Named("audio")

// fullScale is the magnitude of a full-scale int32 PCM sample.
const fullScale = 1 << 31

// CaptureOptions configures a Capture.
type CaptureOptions struct {
	Device     int     // PortAudio device index or DefaultDevice.
	SampleRate float64 // Acceleration samples per second (one per block).
	Gain       float64 // Acceleration at digital full scale.
}

// Capture is a sample source reading the first channel of an input device.
// The device runs at its default rate with blocks sized so that one block
// spans one acceleration sample; the block mean is the sample value.
type Capture struct {
	opts     CaptureOptions
	device   *portaudio.DeviceInfo
	hwRate   float64
	frames   int
	channels int
	blockMs  float64

	stream  *portaudio.Stream
	out     chan<- analysis.Sample
	blocks  uint64
	dropped atomic.Uint64
}

// NewCapture resolves the device. PortAudio must be initialized.
func NewCapture(opts CaptureOptions) (*Capture, error) {
	if opts.SampleRate <= 0 || opts.Gain <= 0 {
		return nil, fmt.Errorf("audio source: sample rate and gain must be positive")
	}
	device, err := InputDevice(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("audio source: %w", err)
	}
	frames := max(1, int(math.Round(device.DefaultSampleRate/opts.SampleRate)))
	return &Capture{
		opts:     opts,
		device:   device,
		hwRate:   device.DefaultSampleRate,
		frames:   frames,
		channels: min(device.MaxInputChannels, 2),
		blockMs:  1000 * float64(frames) / device.DefaultSampleRate,
	}, nil
}

// Run opens the input stream and delivers samples until ctx is cancelled.
func (c *Capture) Run(ctx context.Context, out chan<- analysis.Sample) error {
	c.out = out
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: c.channels,
			Device:   c.device,
			Latency:  c.device.DefaultLowInputLatency,
		},
		FramesPerBuffer: c.frames,
		SampleRate:      c.hwRate,
	}

	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return fmt.Errorf("audio source: open stream: %w", err)
	}
	c.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		c.stream = nil
		return fmt.Errorf("audio source: start stream: %w", err)
	}
	logger.Infof("capturing %s at %.0f Hz, %d frames per sample", c.device.Name, c.hwRate, c.frames)

	<-ctx.Done()
	return c.stopStream()
}

// process is the PortAudio callback. It does not allocate or block.
func (c *Capture) process(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s := analysis.Sample{
		T: float64(c.blocks) * c.blockMs,
		Y: c.opts.Gain * blockMean(in, c.channels) / fullScale,
	}
	c.blocks++
	select {
	case c.out <- s:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns the number of blocks dropped because the engine was busy.
func (c *Capture) Dropped() uint64 { return c.dropped.Load() }

// blockMean averages the first channel of an interleaved block.
func blockMean(in []int32, channels int) float64 {
	if channels < 1 {
		channels = 1
	}
	var sum int64
	n := 0
	for i := 0; i < len(in); i += channels {
		sum += int64(in[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (c *Capture) stopStream() error {
	if c.stream == nil {
		return nil
	}
	if err := c.stream.Stop(); err != nil {
		return err
	}
	if err := c.stream.Close(); err != nil {
		return err
	}
	c.stream = nil
	return nil
}

// Close stops the stream if Run did not.
func (c *Capture) Close() error {
	return c.stopStream()
}

// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"shaker/internal/analysis"
	"shaker/internal/stream"

	"github.com/nats-io/nats.go"
)

// NATS subscribes to a subject carrying samples. A message is either JSON
// (see WebSocket) or a block of little-endian float32 values sampled at
// SampleRate, the newest at receive time. A JSON publisher whose clock jumps
// back by more than a second is rebased to carry on from the last sample.
type NATS struct {
	url        string
	subject    string
	sampleRate float64

	nc      *nats.Conn
	start   time.Time
	lastT   float64
	clock   *segment
	dropped atomic.Uint64
}

var _ Source = (*NATS)(nil)

// NewNATS creates a source; the connection is made in Run.
func NewNATS(url, subject string, sampleRate float64) (*NATS, error) {
	if subject == "" {
		return nil, errors.New("nats source: empty subject")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("nats source: invalid sample rate %g", sampleRate)
	}
	return &NATS{
		url:        url,
		subject:    subject,
		sampleRate: sampleRate,
		clock:      newTimeline(time.Now).segment(),
	}, nil
}

// Run subscribes and forwards samples until ctx is cancelled.
func (n *NATS) Run(ctx context.Context, out chan<- analysis.Sample) error {
	nc, err := stream.Connect(n.url)
	if err != nil {
		return fmt.Errorf("nats source: %w", err)
	}
	n.nc = nc
	n.start = time.Now()

	// Async handlers run on one delivery goroutine per subscription, so
	// lastT needs no lock.
	sub, err := nc.Subscribe(n.subject, func(msg *nats.Msg) {
		recv := float64(time.Since(n.start)) / float64(time.Millisecond)
		for _, s := range n.decodePayload(msg.Data, recv) {
			if !offer(out, s) {
				n.dropped.Add(1)
			}
		}
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("nats source: subscribe %s: %w", n.subject, err)
	}
	logger.Infof("nats: subscribed to %s on %s", n.subject, n.url)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		logger.Debugf("nats: unsubscribe: %v", err)
	}
	return nil
}

// Dropped returns the number of samples dropped because the engine was busy.
func (n *NATS) Dropped() uint64 { return n.dropped.Load() }

// decodePayload turns one message into samples. Binary blocks are spread
// backwards from recv at the nominal rate and clipped so that timestamps
// never go back past the previous block.
func (n *NATS) decodePayload(data []byte, recv float64) []analysis.Sample {
	if len(data) == 0 {
		return nil
	}
	if (data[0] == '{' || data[0] == '[') && json.Valid(data) {
		samples, err := decodeJSONSamples(data)
		if err != nil {
			logger.Debugf("nats: bad JSON message: %v", err)
			return nil
		}
		for i := range samples {
			samples[i].T = n.clock.place(samples[i].T)
		}
		return samples
	}

	count := len(data) / 4
	if count == 0 {
		return nil
	}
	stepMs := 1000 / n.sampleRate
	first := recv - float64(count-1)*stepMs
	if first <= n.lastT {
		first = n.lastT + stepMs
	}

	samples := make([]analysis.Sample, count)
	for i := range count {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = analysis.Sample{
			T: first + float64(i)*stepMs,
			Y: float64(math.Float32frombits(bits)),
		}
	}
	n.lastT = samples[count-1].T
	return samples
}

// Close drains the connection.
func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	err := n.nc.Drain()
	n.nc = nil
	return err
}

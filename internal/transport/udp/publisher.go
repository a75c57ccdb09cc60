// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "shaker/internal/log"
	"shaker/internal/transport"
)

/*
Packet layout (BigEndian), PacketSize bytes:

	|<- 4 ->|<--- 8 --->|<- 1 ->|<- 4 ->|<- 4 ->|<- 4 ->|<- 4 ->|
	+-------+-----------+-------+-------+-------+-------+-------+
	|  seq  | timestamp | flags |  pos  | period|  amp  | phase |
	|  u32  |    i64    |  u8   |  f32  |  f32  |  f32  |  f32  |
	+-------+-----------+-------+-------+-------+-------+-------+

timestamp is nanoseconds since the Unix epoch at send time. flags bit 0 is
set while the mode is started, bit 1 while an oscillation is detected.
period is in milliseconds.
*/
const (
	PacketSize = 4 + 8 + 1 + 4*4

	FlagStarted  = 1 << 0
	FlagDetected = 1 << 1
)

// Packet is the decoded form of one datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Flags     uint8
	Position  float32
	Period    float32
	Amplitude float32
	Phase     float32
}

// AppendPacket encodes p onto dst.
func AppendPacket(dst []byte, p Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.Seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(p.Timestamp))
	dst = append(dst, p.Flags)
	for _, v := range [...]float32{p.Position, p.Period, p.Amplitude, p.Phase} {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodePacket parses one datagram.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) != PacketSize {
		return Packet{}, fmt.Errorf("udp packet: want %d bytes, got %d", PacketSize, len(b))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.BigEndian.Uint32(b[off:])) }
	return Packet{
		Seq:       binary.BigEndian.Uint32(b[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:])),
		Flags:     b[12],
		Position:  f(13),
		Period:    f(17),
		Amplitude: f(21),
		Phase:     f(25),
	}, nil
}

// packetFromFrame converts a frame, leaving Seq and Timestamp to the caller.
func packetFromFrame(f transport.Frame) Packet {
	var flags uint8
	if f.Started {
		flags |= FlagStarted
	}
	if f.Detected {
		flags |= FlagDetected
	}
	return Packet{
		Flags:     flags,
		Position:  float32(f.Position),
		Period:    float32(f.PeriodMs),
		Amplitude: float32(f.Amplitude),
		Phase:     float32(f.Phase),
	}
}

// sender is implemented by *UDPSender.
type sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically packs the latest frame and sends it. It runs
// in its own goroutine between Start and Stop, independent of the engine's
// frame rate.
type UDPPublisher struct {
	sender   sender
	frames   transport.FrameProvider
	interval time.Duration

	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup

	sequenceNum uint32
	packet      []byte // Reused for every datagram.
}

// NewUDPPublisher creates a publisher. A non-positive interval defaults to
// 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, s sender, frames transport.FrameProvider) (*UDPPublisher, error) {
	if s == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if frames == nil {
		return nil, errors.New("UDPPublisher: frame provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		logger.Warnf("invalid publish interval, defaulting to %s", interval)
	}
	return &UDPPublisher{
		sender:   s,
		frames:   frames,
		interval: interval,
		packet:   make([]byte, 0, PacketSize),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Infof("publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish(time.Now())
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it. Safe to call repeatedly.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// publish sends the latest frame, if any, stamped with now.
func (p *UDPPublisher) publish(now time.Time) {
	frame, ok := p.frames.LatestFrame()
	if !ok {
		return
	}
	pkt := packetFromFrame(frame)
	p.sequenceNum++
	pkt.Seq = p.sequenceNum
	pkt.Timestamp = now.UnixNano()

	p.packet = AppendPacket(p.packet[:0], pkt)
	err := p.sender.Send(p.packet)
	if !applog.DebugEnabled() {
		return
	}
	if err != nil {
		logger.Debugf("send packet %d: %v", pkt.Seq, err)
		return
	}
	logger.Debugf("sent packet %d (%d bytes)", pkt.Seq, len(p.packet))
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)

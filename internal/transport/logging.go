// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "shaker/internal/log"
)

var logger = applog.Named("transport")

// LoggingTransport writes frames to the debug log, one in every Every.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingTransport creates a LoggingTransport. every < 1 logs all frames.
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	logger.Infof("using logging transport (every %d frames)", every)
	return &LoggingTransport{every: uint64(every)}
}

// Send logs data when it falls on the sampling stride.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 {
		return nil
	}
	if f, ok := data.(Frame); ok {
		logger.Debugf("frame %d t=%.0fms pos=%+.3f period=%.1fms detected=%v",
			f.Seq, f.TimeMs, f.Position, f.PeriodMs, f.Detected)
		return nil
	}
	logger.Debugf("received (%T): %+v", data, data)
	return nil
}

// Count returns the number of frames received.
func (lt *LoggingTransport) Count() uint64 { return lt.count.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	logger.Debugf("logging transport closed after %d frames", lt.count.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)

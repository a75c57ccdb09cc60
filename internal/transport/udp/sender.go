// SPDX-License-Identifier: MIT

// Package udp publishes compact binary position packets over UDP for
// consumers that cannot parse JSON, e.g. microcontrollers driving LEDs.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "shaker/internal/log"
)

var logger = applog.Named("udp")

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender is closed")

// UDPSender writes datagrams to a fixed target.
type UDPSender struct {
	mu     sync.Mutex // Protects conn during Close.
	conn   *net.UDPConn
	closed bool
}

// NewUDPSender dials targetAddress ("host:port").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}
	logger.Infof("sender connected to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits data as one datagram. Safe for concurrent use.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the connection. Closing twice is a no-op.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	logger.Debugf("closing connection to %s", s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ interface{ Close() error } = (*UDPSender)(nil)

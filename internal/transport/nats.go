// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"

	"shaker/internal/stream"
)

// publisher is the subset of *nats.Conn used to publish frames.
type publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSTransport publishes frames as JSON on a NATS subject.
type NATSTransport struct {
	conn    publisher
	subject string
}

// NewNATSTransport connects to url and publishes on subject.
func NewNATSTransport(url, subject string) (*NATSTransport, error) {
	nc, err := stream.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats transport: %w", err)
	}
	logger.Infof("nats: publishing frames on %s", subject)
	return newNATSTransport(nc, subject), nil
}

func newNATSTransport(conn publisher, subject string) *NATSTransport {
	return &NATSTransport{conn: conn, subject: subject}
}

// Send marshals data and publishes it. Publishing is buffered by the client
// library, so this does not wait for the server.
func (t *NATSTransport) Send(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("nats transport: marshal: %w", err)
	}
	if err := t.conn.Publish(t.subject, b); err != nil {
		return fmt.Errorf("nats transport: publish: %w", err)
	}
	return nil
}

// Close flushes pending frames and closes the connection.
func (t *NATSTransport) Close() error {
	return t.conn.Drain()
}

var _ Transport = (*NATSTransport)(nil)

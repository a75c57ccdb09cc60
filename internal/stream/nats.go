// SPDX-License-Identifier: MIT

// Package stream wraps the NATS connection shared by the nats sample
// source and the nats frame transport.
package stream

import (
	"fmt"
	"time"

	applog "shaker/internal/log"

	"github.com/nats-io/nats.go"
)

var logger = applog.Named("nats")

// ClientName identifies this process to the NATS server.
const ClientName = "shaker"

// Connect dials url and keeps reconnecting for the lifetime of the process.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(ClientName),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

// SPDX-License-Identifier: MIT
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"shaker/internal/analysis"

	"github.com/gorilla/websocket"
)

// SamplesPath is the endpoint sensor clients connect to.
const SamplesPath = "/samples"

// WebSocket accepts sensor clients (e.g. a browser reading its
// LinearAccelerationSensor) that send JSON samples:
//
//	{"timestamp": 1712.5, "value": -0.42}
//
// or arrays of them. Samples from all clients are merged onto one clock, so a
// client that reconnects with a fresh clock carries on where it left off;
// out-of-order timestamps are discarded by the estimator.
type WebSocket struct {
	addr     string
	upgrader websocket.Upgrader
	timeline *timeline

	mu      sync.Mutex
	server  *http.Server
	clients map[*websocket.Conn]struct{}

	dropped atomic.Uint64
}

var _ Source = (*WebSocket)(nil)

// NewWebSocket creates a source that listens on addr once Run is called.
func NewWebSocket(addr string) *WebSocket {
	return &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Sensor pages are served from anywhere.
			},
		},
		timeline: newTimeline(time.Now),
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler that feeds out.
func (s *WebSocket) Handler(out chan<- analysis.Sample) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SamplesPath, func(w http.ResponseWriter, r *http.Request) {
		s.handle(w, r, out)
	})
	return mux
}

// Run serves until ctx is cancelled.
func (s *WebSocket) Run(ctx context.Context, out chan<- analysis.Sample) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(out),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("websocket: listening for samples on %s%s", s.addr, SamplesPath)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeClients()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("websocket source: %w", err)
	}
}

// Dropped returns the number of samples dropped because the engine was busy.
func (s *WebSocket) Dropped() uint64 { return s.dropped.Load() }

// ClientCount returns the number of connected sensor clients.
func (s *WebSocket) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *WebSocket) handle(w http.ResponseWriter, r *http.Request, out chan<- analysis.Sample) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket: upgrade error: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	total := len(s.clients)
	s.mu.Unlock()
	logger.Infof("websocket: sensor connected from %s, total: %d", r.RemoteAddr, total)
	seg := s.timeline.segment()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		logger.Infof("websocket: sensor %s disconnected", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		samples, err := decodeJSONSamples(data)
		if err != nil {
			logger.Debugf("websocket: bad message from %s: %v", r.RemoteAddr, err)
			continue
		}
		for _, smp := range samples {
			smp.T = seg.place(smp.T)
			if !offer(out, smp) {
				s.dropped.Add(1)
			}
		}
	}
}

func (s *WebSocket) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
}

// Close closes the server if Run is still serving.
func (s *WebSocket) Close() error {
	s.closeClients()
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server != nil {
		return server.Close()
	}
	return nil
}

// decodeJSONSamples accepts a single sample object or an array of them.
func decodeJSONSamples(data []byte) ([]analysis.Sample, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty message")
	}
	if data[0] == '[' {
		var batch []analysis.Sample
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var one analysis.Sample
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []analysis.Sample{one}, nil
}

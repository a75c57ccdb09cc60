// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FramesPath is the endpoint indicator clients connect to.
const FramesPath = "/ws"

// WebSocketTransport broadcasts frames as JSON to every connected client.
// Frames arriving faster than the configured rate are dropped.
type WebSocketTransport struct {
	addr        string
	upgrader    websocket.Upgrader
	minInterval time.Duration
	server      *http.Server

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	sendMu   sync.Mutex
	lastSend time.Time

	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates a transport for addr limited to maxRate
// frames per second (0 for unlimited). Call Start to listen.
func NewWebSocketTransport(addr string, maxRate float64) *WebSocketTransport {
	var minInterval time.Duration
	if maxRate > 0 {
		minInterval = time.Duration(float64(time.Second) / maxRate)
	}
	wst := &WebSocketTransport{
		addr:        addr,
		minInterval: minInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Indicator pages are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan any, 64),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving FramesPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FramesPath, wst.handleWebSocket)
	return mux
}

// Start begins serving in the background.
func (wst *WebSocketTransport) Start() {
	wst.server = &http.Server{
		Addr:              wst.addr,
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("websocket: serving frames on %s%s", wst.addr, FramesPath)
		if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket: server error: %v", err)
		}
	}()
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket: upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	logger.Infof("websocket: client connected, total: %d", total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		logger.Infof("websocket: client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued frames to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			var failed []*websocket.Conn
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(time.Second))
				if err := client.WriteJSON(data); err != nil {
					logger.Debugf("websocket: send failed: %v", err)
					failed = append(failed, client)
				}
			}
			wst.clientsMu.Unlock()
			for _, c := range failed {
				wst.drop(c)
			}
		case <-wst.done:
			return
		}
	}
}

// Send queues data for broadcast. Frames above the rate limit, or arriving
// while the queue is full, are dropped silently.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return errors.New("websocket transport closed")
	default:
	}

	if wst.minInterval > 0 {
		now := time.Now()
		wst.sendMu.Lock()
		if now.Sub(wst.lastSend) < wst.minInterval {
			wst.sendMu.Unlock()
			return nil
		}
		wst.lastSend = now
		wst.sendMu.Unlock()
	}

	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// Close disconnects all clients and shuts down the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("websocket: closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]struct{})
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)

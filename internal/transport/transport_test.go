// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+FramesPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketTransportBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", 0)
	defer wst.Close()
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return wst.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	want := Frame{Session: "s", Seq: 7, Position: 0.5, PeriodMs: 512, FrequencyHz: 1000.0 / 512, Detected: true}
	require.NoError(t, wst.Send(want))

	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got Frame
		require.NoError(t, c.ReadJSON(&got))
		assert.Equal(t, want, got)
	}

	a.Close()
	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketTransportRateLimit(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", 1) // one frame per second
	defer wst.Close()
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	c := dial(t, srv)
	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, wst.Send(Frame{Seq: 1}))
	require.NoError(t, wst.Send(Frame{Seq: 2})) // dropped

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	require.NoError(t, c.ReadJSON(&got))
	assert.Equal(t, uint64(1), got.Seq)

	c.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	assert.Error(t, c.ReadJSON(&got), "second frame should have been rate limited")
}

func TestWebSocketTransportClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", 0)
	require.NoError(t, wst.Close())
	require.NoError(t, wst.Close())
	assert.Error(t, wst.Send(Frame{}))
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport(10)
	for i := range 25 {
		require.NoError(t, lt.Send(Frame{Seq: uint64(i)}))
	}
	require.NoError(t, lt.Send("not a frame"))
	assert.Equal(t, uint64(26), lt.Count())
	assert.NoError(t, lt.Close())
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, append([]byte(nil), data...))
	return nil
}

func (f *fakePublisher) Drain() error {
	f.drained = true
	return nil
}

func TestNATSTransport(t *testing.T) {
	pub := &fakePublisher{}
	nt := newNATSTransport(pub, "shaker.frames")

	require.NoError(t, nt.Send(Frame{Seq: 3, Mode: "shake", PeriodMs: 400}))
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "shaker.frames", pub.subjects[0])

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "shake", got["mode"])
	assert.Equal(t, 400.0, got["period_ms"])

	pub.err = errors.New("connection closed")
	assert.ErrorContains(t, nt.Send(Frame{}), "connection closed")

	assert.Error(t, nt.Send(func() {}), "unmarshalable values are rejected")

	require.NoError(t, nt.Close())
	assert.True(t, pub.drained)
}

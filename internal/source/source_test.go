// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"encoding/binary"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shaker/internal/analysis"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, src Source, buffer int) []analysis.Sample {
	t.Helper()
	out := make(chan analysis.Sample, buffer)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, src.Run(ctx, out))
	close(out)

	var got []analysis.Sample
	for s := range out {
		got = append(got, s)
	}
	return got
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"synthetic", "WAV", " websocket", "nats", "audio"} {
		_, err := ParseKind(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseKind("serial")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSyntheticCountAndTimestamps(t *testing.T) {
	src, err := NewSynthetic(SyntheticOptions{SampleRate: 100, Frequency: 2, Amplitude: 3, Count: 50})
	require.NoError(t, err)

	got := collect(t, src, 100)
	require.Len(t, got, 50)
	for i, s := range got {
		assert.InDelta(t, float64(i)*10, s.T, 1e-9)
		assert.InDelta(t, 3*math.Sin(2*math.Pi*2*s.T/1000), s.Y, 1e-9)
	}
}

func TestSyntheticNoiseIsBoundedAndSeeded(t *testing.T) {
	opts := SyntheticOptions{SampleRate: 60, Frequency: 1, Amplitude: 2, Noise: 0.5, Count: 200, Seed: 7}
	a, err := NewSynthetic(opts)
	require.NoError(t, err)
	b, err := NewSynthetic(opts)
	require.NoError(t, err)

	first := collect(t, a, 256)
	second := collect(t, b, 256)
	assert.Equal(t, first, second, "same seed gives the same stream")
	for _, s := range first {
		assert.LessOrEqual(t, math.Abs(s.Y-a.At(s.T)), 0.5)
	}
}

func TestSyntheticStopsOnCancel(t *testing.T) {
	src, err := NewSynthetic(SyntheticOptions{SampleRate: 1000, Frequency: 1, Amplitude: 1, Realtime: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan analysis.Sample, 1024)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("synthetic source did not stop")
	}
	assert.NotZero(t, len(out))
}

func TestNewSyntheticValidates(t *testing.T) {
	_, err := NewSynthetic(SyntheticOptions{SampleRate: 0})
	assert.Error(t, err)
	_, err = NewSynthetic(SyntheticOptions{SampleRate: 10, Count: -1})
	assert.Error(t, err)
}

func TestSampleCodec(t *testing.T) {
	for _, y := range []float64{0, 1, -1, 9.81, -0.000015, 1234.5} {
		assert.InDelta(t, y, DecodeSample(EncodeSample(y), RecordBitDepth), 1.0/SampleScale)
	}
	assert.Equal(t, math.MaxInt32, EncodeSample(1e9))
	assert.Equal(t, math.MinInt32, EncodeSample(-1e9))
	assert.Zero(t, EncodeSample(math.NaN()))

	// A 16-bit value is scaled up by 2^16 before the fixed-point division.
	assert.InDelta(t, 1.0, DecodeSample(1, 16), 1e-12)
}

func writeWAV(t *testing.T, rate int, ys []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samples.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, RecordBitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:   make([]int, len(ys)),
	}
	for i, y := range ys {
		buf.Data[i] = EncodeSample(y)
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestWAVReplay(t *testing.T) {
	ys := []float64{0, 1.5, -2.25, 3, -0.5}
	path := writeWAV(t, 50, ys)

	src, err := NewWAV(path, false)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 50, src.SampleRate())

	got := collect(t, src, 16)
	require.Len(t, got, len(ys))
	for i, s := range got {
		assert.InDelta(t, float64(i)*20, s.T, 1e-9)
		assert.InDelta(t, ys[i], s.Y, 1.0/SampleScale)
	}
}

func TestNewWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF"), 0644))
	_, err := NewWAV(path, false)
	assert.Error(t, err)

	_, err = NewWAV(filepath.Join(t.TempDir(), "missing.wav"), false)
	assert.Error(t, err)
}

func TestDecodeJSONSamples(t *testing.T) {
	one, err := decodeJSONSamples([]byte(` {"timestamp": 12.5, "value": -0.25} `))
	require.NoError(t, err)
	assert.Equal(t, []analysis.Sample{{T: 12.5, Y: -0.25}}, one)

	many, err := decodeJSONSamples([]byte(`[{"timestamp":1,"value":2},{"timestamp":3,"value":4}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = decodeJSONSamples([]byte("  "))
	assert.Error(t, err)
	_, err = decodeJSONSamples([]byte("{nope"))
	assert.Error(t, err)
}

func TestWebSocketIngest(t *testing.T) {
	src := NewWebSocket("127.0.0.1:0")
	out := make(chan analysis.Sample, 8)
	srv := httptest.NewServer(src.Handler(out))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + SamplesPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return src.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"timestamp": 5, "value": 1.25}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[{"timestamp": 6, "value": -1}]`)))

	for _, want := range []analysis.Sample{{T: 5, Y: 1.25}, {T: 6, Y: -1}} {
		select {
		case got := <-out:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %+v", want)
		}
	}

	conn.Close()
	require.Eventually(t, func() bool { return src.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketDropsWhenFull(t *testing.T) {
	src := NewWebSocket("127.0.0.1:0")
	out := make(chan analysis.Sample) // never read
	srv := httptest.NewServer(src.Handler(out))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+SamplesPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[{"timestamp":1,"value":1},{"timestamp":2,"value":2}]`)))
	require.Eventually(t, func() bool { return src.Dropped() == 2 }, time.Second, 5*time.Millisecond)
}

func float32Block(vs ...float32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func TestNATSDecodePayload(t *testing.T) {
	n, err := NewNATS("nats://127.0.0.1:4222", "shaker.samples", 100)
	require.NoError(t, err)

	got := n.decodePayload(float32Block(1, -2, 3), 1000)
	require.Len(t, got, 3)
	assert.Equal(t, analysis.Sample{T: 980, Y: 1}, got[0])
	assert.Equal(t, analysis.Sample{T: 990, Y: -2}, got[1])
	assert.Equal(t, analysis.Sample{T: 1000, Y: 3}, got[2])

	// A block arriving early is pushed past the previous one.
	got = n.decodePayload(float32Block(4, 5), 1005)
	require.Len(t, got, 2)
	assert.Equal(t, 1010.0, got[0].T)
	assert.Equal(t, 1020.0, got[1].T)

	got = n.decodePayload([]byte(`{"timestamp": 7, "value": 0.5}`), 2000)
	assert.Equal(t, []analysis.Sample{{T: 7, Y: 0.5}}, got)

	assert.Empty(t, n.decodePayload(nil, 0))
	assert.Empty(t, n.decodePayload([]byte{1, 2}, 0), "short binary block")
}

func TestNewNATSValidates(t *testing.T) {
	_, err := NewNATS("nats://x", "", 100)
	assert.Error(t, err)
	_, err = NewNATS("nats://x", "s", 0)
	assert.Error(t, err)
}

func TestTimelineRebasesSegments(t *testing.T) {
	wall := time.Unix(0, 0)
	tl := newTimeline(func() time.Time { return wall })

	first := tl.segment()
	assert.Equal(t, 100.0, first.place(100))
	wall = wall.Add(50 * time.Millisecond)
	assert.Equal(t, 150.0, first.place(150))
	wall = wall.Add(50 * time.Millisecond)
	assert.Equal(t, 120.0, first.place(120), "small jitter passes through")

	// A reconnect 300 ms later restarts its clock at zero.
	wall = wall.Add(300 * time.Millisecond)
	second := tl.segment()
	assert.Equal(t, 450.0, second.place(0))
	wall = wall.Add(20 * time.Millisecond)
	assert.Equal(t, 470.0, second.place(20))

	// The same segment resetting its clock is rebased too.
	wall = wall.Add(10 * time.Millisecond)
	assert.Equal(t, 480.0, second.place(-5000))
	assert.Equal(t, 490.0, second.place(-4990))

	// Back-to-back segments still move forward.
	assert.Equal(t, 491.0, tl.segment().place(3))

	assert.True(t, math.IsNaN(second.place(math.NaN())))
}

func TestWebSocketReconnectWithResetClock(t *testing.T) {
	src := NewWebSocket("127.0.0.1:0")
	out := make(chan analysis.Sample, 8)
	srv := httptest.NewServer(src.Handler(out))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + SamplesPath

	receive := func() analysis.Sample {
		t.Helper()
		select {
		case got := <-out:
			return got
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a sample")
		}
		return analysis.Sample{}
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`[{"timestamp": 60000, "value": 1}, {"timestamp": 60050, "value": -1}]`)))
	assert.Equal(t, 60000.0, receive().T)
	last := receive().T
	conn.Close()
	require.Eventually(t, func() bool { return src.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// The page was reloaded, so its sensor clock starts again near zero.
	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`[{"timestamp": 3, "value": 1}, {"timestamp": 53, "value": -1}]`)))

	a, b := receive(), receive()
	assert.Greater(t, a.T, last)
	assert.InDelta(t, 50, b.T-a.T, 1e-9, "spacing within a connection is kept")
	assert.Equal(t, -1.0, b.Y)
}

func TestNATSJSONClockReset(t *testing.T) {
	n, err := NewNATS("nats://127.0.0.1:4222", "shaker.samples", 100)
	require.NoError(t, err)

	got := n.decodePayload([]byte(`{"timestamp": 90000, "value": 1}`), 0)
	require.Len(t, got, 1)
	assert.Equal(t, 90000.0, got[0].T)

	// Publisher restarted.
	got = n.decodePayload([]byte(`[{"timestamp": 10, "value": 2}, {"timestamp": 20, "value": 3}]`), 0)
	require.Len(t, got, 2)
	assert.Greater(t, got[0].T, 90000.0)
	assert.InDelta(t, 10, got[1].T-got[0].T, 1e-9)
}

func TestWebSocketRunCloseConcurrently(t *testing.T) {
	src := NewWebSocket("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, make(chan analysis.Sample, 1)) }()

	// Close may race with Run installing the server.
	assert.NoError(t, src.Close())
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.NoError(t, src.Close())
}

package preview

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
)

type staticText string

func (s staticText) Text() string { return string(s) }

func newTestServer(t *testing.T, cfg config.PreviewConfig) (*Server, *frame.Ring, *httptest.Server) {
	t.Helper()
	ring := frame.NewRing(2)
	s := NewServer(cfg, ring, staticText("Searching for camera...\nNo suitable USB camera found"))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.hub.close()
		ts.Close()
	})
	return s, ring, ts
}

func dial(t *testing.T, ts *httptest.Server, s *Server, want int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", s.Clients(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestFrameEndpoint(t *testing.T) {
	_, ring, ts := newTestServer(t, config.PreviewConfig{ClientQueue: 2})

	resp, err := http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status before any frame = %d", resp.StatusCode)
	}

	ring.HandleFrame(frame.Frame{Sequence: 7, Data: []byte{0xff, 0xd8, 0xff, 0xd9}})

	resp, err = http.Get(ts.URL + "/frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if seq := resp.Header.Get("X-Frame-Sequence"); seq != "7" {
		t.Errorf("sequence header = %q", seq)
	}
	if len(body) != 4 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestMessagesAndHealth(t *testing.T) {
	_, _, ts := newTestServer(t, config.PreviewConfig{})

	testCases := []struct {
		path string
		want string
	}{
		{"/messages", "Searching for camera...\nNo suitable USB camera found"},
		{"/healthz", `{"status":"ok","clients":0}`},
	}
	for _, tc := range testCases {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != tc.want {
			t.Errorf("%s = %q, want %q", tc.path, body, tc.want)
		}
	}
}

func TestWebsocketReceivesFramesAndMessages(t *testing.T) {
	s, _, ts := newTestServer(t, config.PreviewConfig{ClientQueue: 4})
	conn := dial(t, ts, s, 1)

	s.HandleFrame(frame.Frame{Data: []byte{1, 2, 3}})
	s.Announce("Device connected and interface claimed")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.BinaryMessage || len(data) != 3 {
		t.Fatalf("first message kind=%d len=%d", kind, len(data))
	}
	kind, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.TextMessage || string(data) != "Device connected and interface claimed" {
		t.Fatalf("second message kind=%d data=%q", kind, data)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	s, _, ts := newTestServer(t, config.PreviewConfig{ClientQueue: 1})
	dial(t, ts, s, 1)

	// the client never reads; once both its queue and the socket buffers
	// fill, broadcast disconnects it
	big := make([]byte, 1<<20)
	deadline := time.Now().Add(5 * time.Second)
	for s.Clients() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was never dropped")
		}
		s.HandleFrame(frame.Frame{Data: big})
	}
	if s.Dropped() == 0 {
		t.Fatal("expected a dropped client")
	}
}

func TestFrameRateLimit(t *testing.T) {
	_, ring, ts := newTestServer(t, config.PreviewConfig{FrameRequests: 2})
	ring.HandleFrame(frame.Frame{Data: []byte{0xff}})

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/frame.jpg")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v", codes)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	defer rl.Stop()
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second request allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other client denied")
	}
	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("request after refill denied")
	}
}

func TestShutdownClosesClients(t *testing.T) {
	s, _, ts := newTestServer(t, config.PreviewConfig{ClientQueue: 1})
	conn := dial(t, ts, s, 1)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
	if s.Clients() != 0 {
		t.Fatalf("clients = %d", s.Clients())
	}
}

// ABOUTME: Tests for the websocket frame mirror
// ABOUTME: Connects real websocket clients through httptest
package mirror

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/dualclock/internal/version"
)

func dial(t *testing.T, ts *httptest.Server) (*websocket.Conn, Hello) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading hello failed: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("expected text hello, got type %d", mt)
	}

	var hello Hello
	if err := json.Unmarshal(data, &hello); err != nil {
		t.Fatalf("bad hello: %v", err)
	}
	return conn, hello
}

func waitViewers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.ViewerCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d viewers, have %d", n, s.ViewerCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestHello(t *testing.T) {
	s := New(Config{Name: "desk", Panels: 2})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, hello := dial(t, ts)
	defer conn.Close()

	if hello.Name != "desk" || hello.Panels != 2 {
		t.Errorf("unexpected hello %+v", hello)
	}
	if hello.ServerID == "" || hello.ViewerID == "" {
		t.Error("expected server and viewer ids")
	}
	if hello.Version != version.Version || hello.Product != version.Product || hello.Manufacturer != version.Manufacturer {
		t.Errorf("expected version info in hello, got %+v", hello)
	}
}

func TestPublishDeliversPNG(t *testing.T) {
	s := New(Config{Panels: 2})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := dial(t, ts)
	defer conn.Close()
	waitViewers(t, s, 1)

	red := color.RGBA{255, 0, 0, 255}
	s.Publish(1, solid(red))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got %d", mt)
	}
	if data[0] != 1 {
		t.Errorf("expected panel 1, got %d", data[0])
	}

	img, err := png.Decode(bytes.NewReader(data[1:]))
	if err != nil {
		t.Fatalf("png decode failed: %v", err)
	}
	r, g, b, _ := img.At(2, 2).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("expected red pixel, got %v", img.At(2, 2))
	}
}

func TestPublishWithoutViewers(t *testing.T) {
	s := New(Config{Panels: 1})
	defer s.Close()

	s.Publish(0, solid(color.RGBA{A: 255}))
	time.Sleep(20 * time.Millisecond)

	if st := s.Stats(); st.Published != 0 || st.RateLimited != 0 {
		t.Errorf("expected nothing published, got %+v", st)
	}
}

func TestPublishRateLimited(t *testing.T) {
	s := New(Config{Panels: 1, MaxFPS: 0.5})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := dial(t, ts)
	defer conn.Close()
	waitViewers(t, s, 1)

	img := solid(color.RGBA{A: 255})
	for i := 0; i < 5; i++ {
		s.Publish(0, img)
	}

	if got := s.Stats().RateLimited; got != 4 {
		t.Errorf("expected 4 rate limited frames, got %d", got)
	}
}

func TestPublishUnknownPanel(t *testing.T) {
	s := New(Config{Panels: 1})
	defer s.Close()

	// Must not panic.
	s.Publish(5, solid(color.RGBA{}))
	s.Publish(-1, solid(color.RGBA{}))
}

func TestLateViewerGetsLatestFrame(t *testing.T) {
	s := New(Config{Panels: 2})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	first, _ := dial(t, ts)
	defer first.Close()
	waitViewers(t, s, 1)

	s.Publish(0, solid(color.RGBA{0, 0, 255, 255}))
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err != nil {
		t.Fatalf("first viewer read failed: %v", err)
	}

	second, _ := dial(t, ts)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("second viewer read failed: %v", err)
	}
	if data[0] != 0 {
		t.Errorf("expected panel 0 replay, got %d", data[0])
	}
}

func TestViewerDisconnect(t *testing.T) {
	s := New(Config{Panels: 1})
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := dial(t, ts)
	waitViewers(t, s, 1)

	conn.Close()
	waitViewers(t, s, 0)
}

func TestViewerAfterCloseIsDropped(t *testing.T) {
	s := New(Config{Panels: 1})

	// Upgrade directly so the connection reaches registration after Close
	// has already swept the viewer set.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.Close()
		s.handleConnection(conn)
	}))
	defer ts.Close()

	conn, _ := dial(t, ts)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection")
	} else if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		t.Fatal("connection stayed open after Close")
	}
	if n := s.ViewerCount(); n != 0 {
		t.Errorf("expected no viewers after Close, got %d", n)
	}
}

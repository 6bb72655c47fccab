// ABOUTME: Websocket mirror streaming presented panel frames to viewers
// ABOUTME: Frames are rate limited per panel and sent as [panel id][PNG]
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/dualclock/internal/version"
	"golang.org/x/time/rate"
)

// Config holds mirror configuration
type Config struct {
	Port   int
	Name   string
	MaxFPS float64 // Per panel; <= 0 means unlimited
	Panels int
}

// Hello is the first text message each viewer receives
type Hello struct {
	ServerID     string `json:"server_id"`
	Name         string `json:"name"`
	Product      string `json:"product"`
	Manufacturer string `json:"manufacturer"`
	Version      string `json:"version"`
	Panels       int    `json:"panels"`
	ViewerID     string `json:"viewer_id"`
}

// Stats counts frame handling outcomes
type Stats struct {
	Published   int64 // Encoded and queued to viewers
	RateLimited int64 // Skipped by the per-panel limiter
	Dropped     int64 // Skipped because the encoder was busy
}

// Viewer is one connected websocket client
type Viewer struct {
	ID       string
	Conn     *websocket.Conn
	sendChan chan []byte
}

type frame struct {
	panel int
	img   *image.RGBA
}

// Server serves /ws
type Server struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	viewers   map[string]*Viewer
	viewersMu sync.RWMutex

	limiters []*rate.Limiter
	frames   chan frame

	latest   [][]byte
	latestMu sync.Mutex

	published   atomic.Int64
	rateLimited atomic.Int64
	dropped     atomic.Int64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a mirror and starts its encoder
func New(config Config) *Server {
	limit := rate.Inf
	if config.MaxFPS > 0 {
		limit = rate.Limit(config.MaxFPS)
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		upgrader: websocket.Upgrader{
			// Viewers are on the local network; accept any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		viewers:  make(map[string]*Viewer),
		frames:   make(chan frame, 4),
		latest:   make([][]byte, config.Panels),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < config.Panels; i++ {
		s.limiters = append(s.limiters, rate.NewLimiter(limit, 1))
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.encoder()
	}()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves HTTP on the configured port until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Frame mirror listening on %s", addr)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		serverErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Mirror shutdown error: %v", err)
	}
	s.Close()

	if serverErr != nil {
		return fmt.Errorf("mirror HTTP server failed: %w", serverErr)
	}
	return nil
}

// Close stops the encoder and disconnects viewers
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stopChan)

		s.viewersMu.Lock()
		for _, v := range s.viewers {
			v.Conn.Close()
		}
		s.viewersMu.Unlock()
	})
	s.wg.Wait()
}

// Publish offers a panel frame. It never blocks; frames are skipped when no
// one is watching, the panel's rate limit is hit or the encoder is busy.
func (s *Server) Publish(panel int, img *image.RGBA) {
	if panel < 0 || panel >= len(s.limiters) {
		return
	}
	if s.ViewerCount() == 0 {
		return
	}
	if !s.limiters[panel].Allow() {
		s.rateLimited.Add(1)
		return
	}

	cp := &image.RGBA{
		Pix:    append([]uint8(nil), img.Pix...),
		Stride: img.Stride,
		Rect:   img.Rect,
	}

	select {
	case s.frames <- frame{panel: panel, img: cp}:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) encoder() {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}

	for {
		select {
		case <-s.stopChan:
			return
		case f := <-s.frames:
			var buf bytes.Buffer
			buf.WriteByte(byte(f.panel))
			if err := enc.Encode(&buf, f.img); err != nil {
				log.Printf("Failed to encode frame for panel %d: %v", f.panel, err)
				continue
			}
			data := buf.Bytes()

			s.latestMu.Lock()
			s.latest[f.panel] = data
			s.latestMu.Unlock()

			s.broadcast(data)
			s.published.Add(1)
		}
	}
}

func (s *Server) broadcast(data []byte) {
	s.viewersMu.RLock()
	defer s.viewersMu.RUnlock()

	for _, v := range s.viewers {
		select {
		case v.sendChan <- data:
		default:
			// Slow viewer; it will catch up on the next frame.
		}
	}
}

// ViewerCount returns the number of connected viewers
func (s *Server) ViewerCount() int {
	s.viewersMu.RLock()
	defer s.viewersMu.RUnlock()
	return len(s.viewers)
}

// Stats returns frame counters
func (s *Server) Stats() Stats {
	return Stats{
		Published:   s.published.Load(),
		RateLimited: s.rateLimited.Load(),
		Dropped:     s.dropped.Load(),
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.stopChan:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New mirror viewer from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	viewer := &Viewer{
		ID:       uuid.New().String(),
		Conn:     conn,
		sendChan: make(chan []byte, 8+len(s.latest)),
	}

	hello, err := json.Marshal(Hello{
		ServerID:     s.serverID,
		Name:         s.config.Name,
		Product:      version.Product,
		Manufacturer: version.Manufacturer,
		Version:      version.Version,
		Panels:       s.config.Panels,
		ViewerID:     viewer.ID,
	})
	if err != nil {
		log.Printf("Error marshaling hello: %v", err)
		return
	}

	// Hello and the current frames go out before the viewer joins the
	// broadcast set, so they always arrive first.
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		log.Printf("Error sending hello: %v", err)
		return
	}
	s.latestMu.Lock()
	for _, data := range s.latest {
		if data != nil {
			viewer.sendChan <- data
		}
	}
	s.latestMu.Unlock()

	// Close may have swept the viewer set while the hello was in flight.
	s.viewersMu.Lock()
	select {
	case <-s.stopChan:
		s.viewersMu.Unlock()
		return
	default:
	}
	s.viewers[viewer.ID] = viewer
	s.viewersMu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.viewerWriter(viewer)
	}()

	defer func() {
		s.viewersMu.Lock()
		delete(s.viewers, viewer.ID)
		s.viewersMu.Unlock()
		close(viewer.sendChan)
		<-writerDone
		log.Printf("Mirror viewer disconnected: %s", viewer.ID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// viewerWriter sends frames to the viewer
func (s *Server) viewerWriter(v *Viewer) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case data, ok := <-v.sendChan:
			if !ok {
				return
			}
			v.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.Conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				log.Printf("Error writing frame: %v", err)
				return
			}

		case <-ticker.C:
			if err := v.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

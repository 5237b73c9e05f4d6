// Package preview serves captured frames and bridge messages over HTTP and websocket.
package preview

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
)

// FrameSource yields the newest finished frame.
type FrameSource interface {
	Latest() (frame.Frame, bool)
}

// MessageSource yields the displayed message text.
type MessageSource interface {
	Text() string
}

// Server is the preview HTTP server. It implements frame.Sink.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	hub        *hub
	limiter    *RateLimiter
	frames     FrameSource
	messages   MessageSource
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewServer creates a preview server on cfg.Addr. messages may be nil.
func NewServer(cfg config.PreviewConfig, frames FrameSource, messages MessageSource) *Server {
	logger := zap.L().Named("preview")
	s := &Server{
		mux:      http.NewServeMux(),
		hub:      newHub(cfg.ClientQueue, logger),
		frames:   frames,
		messages: messages,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 64 * 1024},
		logger:   logger,
	}

	frameHandler := s.handleFrame
	if cfg.FrameRequests > 0 {
		s.limiter = NewRateLimiter(cfg.FrameRequests, time.Second)
		frameHandler = s.limiter.Middleware(frameHandler)
	}
	s.mux.HandleFunc("GET /frame.jpg", frameHandler)
	s.mux.HandleFunc("GET /messages", s.handleMessages)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	fr, ok := s.frames.Latest()
	if !ok {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(fr.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Sequence", strconv.FormatUint(fr.Sequence, 10))
	w.Write(fr.Data)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.messages != nil {
		w.Write([]byte(s.messages.Text()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","clients":` + strconv.Itoa(s.hub.len()) + `}`))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c, ok := s.hub.add(conn)
	if !ok {
		conn.Close()
		return
	}
	s.hub.readLoop(c)
}

// HandleFrame sends fr to every websocket client as a binary message.
func (s *Server) HandleFrame(fr frame.Frame) {
	s.hub.broadcast(outbound{kind: websocket.BinaryMessage, data: fr.Data})
}

// Announce sends msg to every websocket client as a text message.
func (s *Server) Announce(msg string) {
	s.hub.broadcast(outbound{kind: websocket.TextMessage, data: []byte(msg)})
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	return s.hub.len()
}

// Dropped returns how many clients were disconnected for falling behind.
func (s *Server) Dropped() uint64 {
	return s.hub.dropped.Load()
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting preview server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// StartInBackground runs Start in a goroutine.
func (s *Server) StartInBackground() {
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("preview server error", zap.Error(err))
		}
	}()
}

// Shutdown disconnects clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down preview server")
	s.hub.close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

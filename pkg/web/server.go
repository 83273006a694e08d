// Package web serves the go-talk status API, Prometheus metrics and an
// optional WebRTC listen endpoint.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-talk/pkg/hub"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// StatusFunc returns the current status document.
type StatusFunc func() any

// Server is the status server.
type Server struct {
	app    *fiber.App
	port   string
	status StatusFunc
	logger *slog.Logger

	statusHub *hub.Hub

	// track is the WebRTC audio track offered to listeners; nil disables /api/listen.
	track webrtc.TrackLocal

	peersMu sync.Mutex
	peers   map[*webrtc.PeerConnection]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithTrack enables /api/listen with the given audio track.
func WithTrack(track webrtc.TrackLocal) Option {
	return func(s *Server) {
		s.track = track
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a status server listening on port.
func NewServer(port string, status StatusFunc, opts ...Option) *Server {
	s := &Server{
		port:   port,
		status: status,
		logger: slog.Default(),
		peers:  make(map[*webrtc.PeerConnection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.statusHub = hub.New("status", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "go-talk",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/listen", s.handleListen)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx ends, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.statusHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", ln.Addr().String())
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.closePeers()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Notify broadcasts the current status to websocket clients.
func (s *Server) Notify() {
	if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// Clients returns the number of status websocket clients.
func (s *Server) Clients() int {
	return s.statusHub.ClientCount()
}

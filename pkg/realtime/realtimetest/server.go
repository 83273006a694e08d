// Package realtimetest provides a local realtime speech server that speaks
// the same event protocol as the hosted API. It answers every session.update
// with a synthetic tone so the bridge can run end to end without credentials.
package realtimetest

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/realtime"
)

// Server event types the server sends that Session ignores.
const (
	EventAudioDone    = "response.audio.done"
	EventResponseDone = "response.done"
)

// Path is the websocket endpoint.
const Path = "/v1/realtime"

// peer is a connected realtime client.
type peer struct {
	id        string
	model     string
	ws        *websocket.Conn
	connected time.Time
	lastSeen  time.Time

	audioBytes atomic.Int64
	phase      float64

	mu sync.Mutex

	// writeMu serializes writes and guards closed. The websocket is recycled
	// when the handler returns, so nothing may touch it after closed is set.
	writeMu sync.Mutex
	closed  bool
	dropped atomic.Bool
}

var errConnClosed = errors.New("realtimetest: connection closed")

// send writes one event.
func (c *peer) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// close sends a close frame and closes the socket.
func (c *peer) close(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(time.Second))
	_ = c.ws.Close()
}

// drop ends the connection without a close frame. The hijacked socket only
// closes once the handler returns, so drop expires the read deadline to
// unblock the handler's read loop.
func (c *peer) drop() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.dropped.Store(true)
	return c.ws.SetReadDeadline(time.Now())
}

// release marks the connection unusable.
func (c *peer) release() {
	c.writeMu.Lock()
	c.closed = true
	c.writeMu.Unlock()
}

// Server is a fake realtime endpoint.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]*peer

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	responses        atomic.Uint64
}

// New creates a server.
func New(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "realtimetest"),
		conns:  make(map[string]*peer),
	}
}

// App returns a fiber app with the websocket and API routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "fake-realtime",
		DisableStartupMessage: true,
	})
	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))
	return app
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	app := s.App()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("fake realtime server listening", "addr", ln.Addr().String())
		errCh <- app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// RegisterRoutes registers the websocket endpoint on a fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use(Path, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if s.cfg.APIKey != "" && c.Get(fiber.HeaderAuthorization) != "Bearer "+s.cfg.APIKey {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	})
	app.Get(Path, websocket.New(s.handleConn))
}

func (s *Server) handleConn(c *websocket.Conn) {
	model := c.Query("model")
	if model == "" {
		model = realtime.DefaultModel
	}

	conn := &peer{
		id:        "sess_" + uuid.NewString(),
		model:     model,
		ws:        c,
		connected: time.Now(),
		lastSeen:  time.Now(),
	}

	s.mu.Lock()
	s.conns[conn.id] = conn
	count := len(s.conns)
	s.mu.Unlock()
	s.logger.Info("client connected", "session", conn.id, "model", model, "clients", count)

	defer func() {
		conn.release()
		s.mu.Lock()
		delete(s.conns, conn.id)
		count := len(s.conns)
		s.mu.Unlock()
		s.logger.Info("client disconnected", "session", conn.id, "clients", count)
	}()

	created := realtime.ServerEvent{
		Type:    realtime.EventSessionCreated,
		EventID: newEventID(),
		Session: &realtime.SessionInfo{
			ID:                conn.id,
			Model:             model,
			InputAudioFormat:  realtime.InputAudioFormatPCM16,
			OutputAudioFormat: realtime.InputAudioFormatPCM16,
		},
	}
	if err := s.send(conn, created); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if conn.dropped.Load() {
				s.logger.Info("dropping client", "session", conn.id)
				return
			}
			s.logger.Debug("read ended", "session", conn.id, "error", err)
			return
		}

		conn.mu.Lock()
		conn.lastSeen = time.Now()
		conn.mu.Unlock()

		s.messagesReceived.Add(1)
		s.handleMessage(ctx, conn, data)
	}
}

// clientEvent is the union of the client events the server reads.
type clientEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Audio   string `json:"audio"`
}

func (s *Server) handleMessage(ctx context.Context, conn *peer, data []byte) {
	var ev clientEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
		s.sendError(conn, "invalid_request_error", "invalid_event", "could not parse client event", "")
		return
	}

	switch ev.Type {
	case realtime.EventSessionUpdate:
		if s.cfg.RespondOnUpdate {
			go s.respond(ctx, conn)
		}

	case realtime.EventInputAudioAppend:
		pcm, err := base64.StdEncoding.DecodeString(ev.Audio)
		if err != nil {
			s.sendError(conn, "invalid_request_error", "invalid_audio", "audio is not valid base64", ev.EventID)
			return
		}
		conn.audioBytes.Add(int64(len(pcm)))

	default:
		s.logger.Debug("ignoring client event", "type", ev.Type)
	}
}

// respond streams one synthetic response to conn.
func (s *Server) respond(ctx context.Context, conn *peer) {
	responseID := "resp_" + uuid.NewString()
	itemID := "item_" + uuid.NewString()

	for range s.cfg.Chunks {
		delta := realtime.ServerEvent{
			Type:       realtime.EventAudioDelta,
			EventID:    newEventID(),
			ResponseID: responseID,
			ItemID:     itemID,
			Delta:      base64.StdEncoding.EncodeToString(s.tone(conn)),
		}
		if err := s.send(conn, delta); err != nil {
			return
		}
		if s.cfg.Pace {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.ChunkDuration):
			}
		}
	}

	for _, typ := range []string{EventAudioDone, EventResponseDone} {
		if err := s.send(conn, realtime.ServerEvent{Type: typ, EventID: newEventID(), ResponseID: responseID}); err != nil {
			return
		}
	}
	s.responses.Add(1)

	if s.cfg.EndAfterResponse {
		_ = s.End(conn.id)
	}
}

// tone returns the next ChunkDuration of a continuous sine wave in the
// realtime format.
func (s *Server) tone(conn *peer) []byte {
	format := audioconv.Realtime
	samples := int(s.cfg.ChunkDuration.Seconds() * float64(format.SampleRate))
	out := make([]byte, samples*2)
	step := 2 * math.Pi * s.cfg.ToneHz / float64(format.SampleRate)

	conn.mu.Lock()
	phase := conn.phase
	for i := range samples {
		v := int16(s.cfg.Amplitude * math.MaxInt16 * math.Sin(phase))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		phase += step
	}
	conn.phase = math.Mod(phase, 2*math.Pi)
	conn.mu.Unlock()
	return out
}

func (s *Server) send(conn *peer, v any) error {
	if err := conn.send(v); err != nil {
		s.logger.Debug("write failed", "session", conn.id, "error", err)
		return err
	}
	s.messagesSent.Add(1)
	return nil
}

func (s *Server) sendError(conn *peer, typ, code, message, eventID string) {
	_ = s.send(conn, realtime.ServerEvent{
		Type:    realtime.EventError,
		EventID: newEventID(),
		Error: &realtime.ErrorDetail{
			Type:    typ,
			Code:    code,
			Message: message,
			EventID: eventID,
		},
	})
}

// Respond streams a response to the given session.
func (s *Server) Respond(id string) error {
	conn := s.get(id)
	if conn == nil {
		return fiber.NewError(fiber.StatusNotFound, "session not connected")
	}
	go s.respond(context.Background(), conn)
	return nil
}

// End sends session.ended to the given session.
func (s *Server) End(id string) error {
	conn := s.get(id)
	if conn == nil {
		return fiber.NewError(fiber.StatusNotFound, "session not connected")
	}
	return s.send(conn, realtime.ServerEvent{Type: realtime.EventSessionEnded, EventID: newEventID()})
}

// Drop closes the transport of the given session without a close frame.
func (s *Server) Drop(id string) error {
	conn := s.get(id)
	if conn == nil {
		return fiber.NewError(fiber.StatusNotFound, "session not connected")
	}
	return conn.drop()
}

func (s *Server) get(id string) *peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}

func (s *Server) closeAll() {
	s.mu.RLock()
	conns := make([]*peer, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

// SessionCount returns the number of connected clients.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// SessionIDs returns the IDs of connected clients.
func (s *Server) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	return ids
}

// Stats contains server statistics.
type Stats struct {
	SessionCount     int    `json:"session_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	Responses        uint64 `json:"responses"`
}

// Stats returns server statistics.
func (s *Server) Stats() Stats {
	return Stats{
		SessionCount:     s.SessionCount(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		Responses:        s.responses.Load(),
	}
}

// SessionInfo describes a connected client.
type SessionInfo struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Connected  time.Time `json:"connected"`
	LastSeen   time.Time `json:"last_seen"`
	AudioBytes int64     `json:"audio_bytes"`
}

// Sessions returns info about every connected client.
func (s *Server) Sessions() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(s.conns))
	for _, c := range s.conns {
		c.mu.Lock()
		infos = append(infos, SessionInfo{
			ID:         c.id,
			Model:      c.model,
			Connected:  c.connected,
			LastSeen:   c.lastSeen,
			AudioBytes: c.audioBytes.Load(),
		})
		c.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers routes for driving connected sessions.
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	sessions := api.Group("/sessions")

	sessions.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": s.Sessions(),
			"count":    s.SessionCount(),
		})
	})

	sessions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})

	sessions.Post("/:id/respond", func(c *fiber.Ctx) error {
		if err := s.Respond(c.Params("id")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "responding"})
	})

	sessions.Post("/:id/end", func(c *fiber.Ctx) error {
		if err := s.End(c.Params("id")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "ended"})
	})

	sessions.Post("/:id/drop", func(c *fiber.Ctx) error {
		if err := s.Drop(c.Params("id")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "dropped"})
	})
}

func newEventID() string {
	return "event_" + uuid.NewString()
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/playback"
)

// closeWait bounds how long Disconnect waits for the read loop to exit.
const closeWait = 2 * time.Second

// Session is one realtime conversation over one websocket connection.
// Inbound audio is played through the playback stream it was created with.
type Session struct {
	cfg    *Config
	id     string
	stream *playback.Stream
	queue  *Queue
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	cancel        context.CancelFunc
	done          chan struct{}
	updateSent    bool
	remoteID      string
	connectedAt   time.Time
	onError       func(error)
	onStateChange func(from, to State)

	// writeMu serializes socket writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// sinkMu orders stream opening against cleanup.
	sinkMu sync.Mutex

	received      atomic.Int64
	sent          atomic.Int64
	sendFailures  atomic.Int64
	badEvents     atomic.Int64
	serverErrors  atomic.Int64
	audioReceived atomic.Int64
	audioPlayed   atomic.Int64
}

// NewSession creates a disconnected session that plays into stream.
func NewSession(stream *playback.Stream, opts ...Option) (*Session, error) {
	if stream == nil {
		return nil, ErrMissingStream
	}

	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		cfg:    cfg,
		id:     uuid.NewString(),
		stream: stream,
		state:  StateDisconnected,
	}
	s.logger = cfg.Logger.With("component", "realtime", "session", s.id)
	s.queue = NewQueue(s.processChunk, cfg.MaxQueueChunks, s.logger)

	return s, nil
}

// ID returns the local session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the transport is open.
func (s *Session) IsConnected() bool {
	return s.State().IsConnected()
}

// Queue returns the inbound audio queue.
func (s *Session) Queue() *Queue {
	return s.queue
}

// OnError sets the callback for in-session errors. It is called from the
// read loop and must not block.
func (s *Session) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// OnStateChange sets the callback for state transitions.
func (s *Session) OnStateChange(fn func(from, to State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// Connect opens the websocket and starts the read loop. It returns once the
// transport is open; the session then waits for session.created.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.updateSent = false
	s.remoteID = ""
	notify := s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	notify()

	conn, err := s.dial(ctx)
	if err != nil {
		connectAttempts.WithLabelValues("error").Inc()
		s.mu.Lock()
		revert := func() {}
		if s.state == StateConnecting {
			revert = s.setStateLocked(StateDisconnected)
		}
		s.mu.Unlock()
		revert()
		s.logger.Error("connect failed", "error", err)
		return err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		cancel()
		conn.Close()
		connectAttempts.WithLabelValues("aborted").Inc()
		return &ConnectError{URL: s.cfg.URL, Cause: ErrConnectAborted}
	}
	s.conn = conn
	s.cancel = cancel
	s.done = done
	s.connectedAt = time.Now()
	notify = s.setStateLocked(StateAwaitingConfig)
	s.mu.Unlock()
	notify()

	connectAttempts.WithLabelValues("ok").Inc()
	s.logger.Info("connected", "url", s.cfg.URL, "model", s.cfg.Model)

	go s.readLoop(connCtx, conn, done)
	if s.cfg.PingPeriod > 0 {
		go s.keepAlive(connCtx, conn)
	}

	return nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := s.cfg.tokenSource().Token()
	if err != nil {
		return nil, &ConnectError{URL: s.cfg.URL, Cause: fmt.Errorf("credential: %w", err)}
	}

	endpoint, err := s.cfg.endpoint()
	if err != nil {
		return nil, &ConnectError{URL: s.cfg.URL, Cause: err}
	}

	header := http.Header{}
	header.Set("Authorization", token.Type()+" "+token.AccessToken)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := s.cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: s.cfg.HandshakeTimeout,
		}
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		cerr := &ConnectError{URL: s.cfg.URL, Cause: err}
		if resp != nil {
			cerr.StatusCode = resp.StatusCode
		}
		return nil, cerr
	}
	return conn, nil
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	if s.cfg.ReadTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.handleTransportClosed(conn, err)
			return
		}
		if msgType != websocket.TextMessage {
			s.logger.Debug("ignoring non-text message", "type", msgType)
			continue
		}

		s.received.Add(1)
		s.handleMessage(ctx, data)
	}
}

func (s *Session) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("keepalive ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, data []byte) {
	ev, err := ParseServerEvent(data)
	if err != nil {
		s.protocolError(err)
		return
	}
	eventsReceived.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case EventSessionCreated:
		s.handleSessionCreated(ev)
	case EventSessionEnded:
		s.handleSessionEnded()
	case EventAudioDelta:
		s.handleAudioDelta(ctx, ev)
	case EventError:
		apiErr := ev.APIError()
		s.serverErrors.Add(1)
		apiErrors.WithLabelValues(apiErr.Code).Inc()
		s.logger.Warn("server error event", "type", apiErr.Type, "code", apiErr.Code, "message", apiErr.Message)
		s.report(apiErr)
	default:
		s.logger.Debug("ignoring event", "type", ev.Type)
	}
}

func (s *Session) handleSessionCreated(ev *ServerEvent) {
	s.mu.Lock()
	if !s.state.IsConnected() {
		s.mu.Unlock()
		return
	}
	if s.updateSent {
		s.mu.Unlock()
		s.logger.Debug("repeated session.created ignored")
		return
	}
	s.updateSent = true
	if ev.Session != nil {
		s.remoteID = ev.Session.ID
	}
	remoteID := s.remoteID
	s.mu.Unlock()

	s.logger.Info("session created", "remote_id", remoteID)

	if err := s.send(NewSessionUpdate(InputAudioFormatPCM16)); err != nil {
		s.logger.Error("session update failed", "error", err)
		s.report(err)
		return
	}

	s.mu.Lock()
	notify := func() {}
	if s.state == StateAwaitingConfig {
		notify = s.setStateLocked(StateStreaming)
	}
	s.mu.Unlock()
	notify()
}

func (s *Session) handleSessionEnded() {
	s.mu.Lock()
	if !s.state.IsConnected() {
		s.mu.Unlock()
		return
	}
	notify := s.setStateLocked(StateEnded)
	s.mu.Unlock()
	notify()

	s.logger.Info("session ended by server")
	s.cleanup()
}

func (s *Session) handleAudioDelta(ctx context.Context, ev *ServerEvent) {
	if !s.IsConnected() {
		s.logger.Debug("ignoring audio delta", "state", s.State().String())
		return
	}

	pcm, err := ev.DecodeAudio()
	if err != nil {
		s.protocolError(err)
		return
	}
	if len(pcm) == 0 {
		return
	}

	s.audioReceived.Add(1)
	chunksReceived.Inc()
	s.queue.Push(audioconv.Chunk{Data: pcm, Format: audioconv.Realtime})
	s.queue.Trigger(ctx)
}

// processChunk is the queue processor: open the stream, convert, write.
func (s *Session) processChunk(ctx context.Context, chunk audioconv.Chunk) error {
	s.sinkMu.Lock()
	if !s.IsConnected() {
		s.sinkMu.Unlock()
		chunksDropped.WithLabelValues("inactive").Inc()
		return nil
	}
	err := s.stream.EnsureOpen(ctx)
	s.sinkMu.Unlock()
	if err != nil {
		sinkErrors.Inc()
		return fmt.Errorf("open playback: %w", err)
	}

	convCtx, cancel := context.WithTimeout(ctx, s.cfg.ConvertTimeout)
	start := time.Now()
	out, err := s.cfg.Converter.Convert(convCtx, chunk.Data, chunk.Format, s.stream.Format())
	cancel()
	conversionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		conversionErrors.Inc()
		return err
	}
	if len(out) == 0 {
		return nil
	}

	if _, err := s.stream.Write(out); err != nil {
		sinkErrors.Inc()
		return err
	}

	s.audioPlayed.Add(1)
	chunksPlayed.Inc()
	return nil
}

// AppendInputAudio sends microphone PCM (mono 24kHz s16le) to the server.
// It is a no-op for empty input or when the transport is not open. Send
// failures are logged and counted, never returned.
func (s *Session) AppendInputAudio(pcm []byte) {
	if len(pcm) == 0 || !s.IsConnected() {
		return
	}
	if err := s.send(NewInputAudioAppend(pcm)); err != nil {
		s.logger.Warn("input audio append failed", "bytes", len(pcm), "error", err)
	}
}

func (s *Session) send(ev any) error {
	var eventType string
	switch e := ev.(type) {
	case SessionUpdateEvent:
		eventType = e.Type
	case InputAudioBufferAppendEvent:
		eventType = e.Type
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", eventType, err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.sendFailures.Add(1)
		sendErrors.Inc()
		return fmt.Errorf("realtime: send %s: %w", eventType, err)
	}

	s.sent.Add(1)
	eventsSent.WithLabelValues(eventType).Inc()
	return nil
}

func (s *Session) handleTransportClosed(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		// Disconnect already took the connection.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	cancel := s.cancel
	s.cancel = nil
	notify := s.setStateLocked(StateClosed)
	s.mu.Unlock()
	notify()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Info("connection closed by server")
	} else {
		s.logger.Warn("connection lost", "error", err)
		s.report(fmt.Errorf("realtime: transport: %w", err))
	}

	if cancel != nil {
		cancel()
	}
	conn.Close()
	s.cleanup()
}

// Disconnect closes the transport if open and releases playback resources.
// It is valid in any state and safe to call more than once; the session
// returns to StateDisconnected and may Connect again.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	done := s.done
	s.conn = nil
	s.cancel = nil
	s.done = nil
	notify := func() {}
	if s.state != StateDisconnected {
		notify = s.setStateLocked(StateDisconnected)
	}
	s.mu.Unlock()
	notify()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		s.logger.Info("disconnected")
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(closeWait):
			s.logger.Warn("read loop did not exit")
		}
	}

	s.cleanup()
	return nil
}

// cleanup discards pending audio and closes the playback stream.
func (s *Session) cleanup() {
	if n := s.queue.Reset(); n > 0 {
		s.logger.Debug("discarded pending audio", "chunks", n)
	}

	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if err := s.stream.Close(); err != nil {
		s.logger.Warn("closing playback stream", "error", err)
	}
}

func (s *Session) protocolError(err error) {
	s.badEvents.Add(1)
	protocolErrors.Inc()
	s.logger.Warn("dropping inbound message", "error", err)
	s.report(err)
}

func (s *Session) report(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// setStateLocked changes state and returns a func that fires the callback.
// Callers invoke it after releasing mu.
func (s *Session) setStateLocked(to State) func() {
	from := s.state
	s.state = to
	fn := s.onStateChange
	if from == to {
		return func() {}
	}
	s.logger.Debug("state change", "from", from.String(), "to", to.String())
	return func() {
		if fn != nil {
			fn(from, to)
		}
	}
}

// Stats is a snapshot of session activity.
type Stats struct {
	ID               string               `json:"id"`
	RemoteID         string               `json:"remote_id,omitempty"`
	State            string               `json:"state"`
	ConnectedAt      time.Time            `json:"connected_at,omitzero"`
	MessagesReceived int64                `json:"messages_received"`
	MessagesSent     int64                `json:"messages_sent"`
	SendErrors       int64                `json:"send_errors"`
	ProtocolErrors   int64                `json:"protocol_errors"`
	APIErrors        int64                `json:"api_errors"`
	ChunksReceived   int64                `json:"chunks_received"`
	ChunksPlayed     int64                `json:"chunks_played"`
	Queue            QueueStats           `json:"queue"`
	Playback         playback.StreamStats `json:"playback"`
}

// Stats returns a snapshot of session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		ID:          s.id,
		RemoteID:    s.remoteID,
		State:       s.state.String(),
		ConnectedAt: s.connectedAt,
	}
	s.mu.Unlock()

	st.MessagesReceived = s.received.Load()
	st.MessagesSent = s.sent.Load()
	st.SendErrors = s.sendFailures.Load()
	st.ProtocolErrors = s.badEvents.Load()
	st.APIErrors = s.serverErrors.Load()
	st.ChunksReceived = s.audioReceived.Load()
	st.ChunksPlayed = s.audioPlayed.Load()
	st.Queue = s.queue.Stats()
	st.Playback = s.stream.Stats()
	return st
}

// WaitIdle blocks until all queued audio has been played or dropped.
func (s *Session) WaitIdle(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

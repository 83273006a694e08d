package realtimetest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-talk/pkg/playback"
	"github.com/teslashibe/go-talk/pkg/realtime"
	"github.com/teslashibe/go-talk/pkg/realtime/realtimetest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// start serves srv on a loopback port until the test ends.
func start(t *testing.T, srv *realtimetest.Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "ws://" + ln.Addr().String() + realtimetest.Path
}

func newSession(t *testing.T, url, key string) (*realtime.Session, *playback.MockPlayer) {
	t.Helper()
	player := playback.NewMockPlayer()
	stream := playback.NewStream(player, playback.WithLogger(quietLogger()))
	session, err := realtime.NewSession(stream,
		realtime.WithURL(url),
		realtime.WithAPIKey(key),
		realtime.WithPingPeriod(0),
		realtime.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Disconnect() })
	return session, player
}

func TestSessionPlaysResponse(t *testing.T) {
	srv := realtimetest.New(
		realtimetest.WithAPIKey("secret"),
		realtimetest.WithResponse(5, 20*time.Millisecond),
		realtimetest.WithLogger(quietLogger()),
	)
	url := start(t, srv)
	session, player := newSession(t, url, "secret")

	require.NoError(t, session.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return session.Stats().ChunksPlayed == 5
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.StateStreaming, session.State())
	assert.NotEmpty(t, player.Bytes())

	require.Eventually(t, func() bool {
		return srv.Stats().Responses == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Stats().SessionCount)

	session.AppendInputAudio(make([]byte, 960))
	require.Eventually(t, func() bool {
		sessions := srv.Sessions()
		return len(sessions) == 1 && sessions[0].AudioBytes == 960
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.DefaultModel, srv.Sessions()[0].Model)
}

func TestEndAfterResponse(t *testing.T) {
	srv := realtimetest.New(
		realtimetest.WithResponse(2, 20*time.Millisecond),
		realtimetest.WithEndAfterResponse(true),
		realtimetest.WithLogger(quietLogger()),
	)
	url := start(t, srv)
	session, _ := newSession(t, url, "any")

	require.NoError(t, session.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return session.State() == realtime.StateEnded
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRespondAndDrop(t *testing.T) {
	srv := realtimetest.New(
		realtimetest.WithRespondOnUpdate(false),
		realtimetest.WithResponse(3, 20*time.Millisecond),
		realtimetest.WithLogger(quietLogger()),
	)
	url := start(t, srv)
	session, _ := newSession(t, url, "any")

	require.NoError(t, session.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return session.State() == realtime.StateStreaming && srv.SessionCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, session.Stats().ChunksReceived)

	id := srv.SessionIDs()[0]
	require.NoError(t, srv.Respond(id))
	require.Eventually(t, func() bool {
		return session.Stats().ChunksPlayed == 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Drop(id))
	require.Eventually(t, func() bool {
		return session.State() == realtime.StateClosed
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Error(t, srv.Drop(id))
	assert.Error(t, srv.Respond(id))
}

func TestDropWhileIdle(t *testing.T) {
	srv := realtimetest.New(
		realtimetest.WithRespondOnUpdate(false),
		realtimetest.WithLogger(quietLogger()),
	)
	url := start(t, srv)
	session, _ := newSession(t, url, "any")

	require.NoError(t, session.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return session.State() == realtime.StateStreaming && srv.SessionCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Drop(srv.SessionIDs()[0]))
	require.Eventually(t, func() bool {
		return session.State() == realtime.StateClosed
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, session.IsConnected())
}

func TestAPIKeyRequired(t *testing.T) {
	srv := realtimetest.New(
		realtimetest.WithAPIKey("secret"),
		realtimetest.WithLogger(quietLogger()),
	)
	url := start(t, srv)
	session, _ := newSession(t, url, "wrong")

	err := session.Connect(context.Background())
	require.Error(t, err)

	var connectErr *realtime.ConnectError
	require.True(t, errors.As(err, &connectErr))
	assert.Equal(t, 401, connectErr.StatusCode)
	assert.False(t, session.IsConnected())
}

func TestAPIRoutes(t *testing.T) {
	srv := realtimetest.New(realtimetest.WithLogger(quietLogger()))
	app := srv.App()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/sessions/", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Zero(t, list.Count)

	for _, path := range []string{"/api/sessions/missing/end", "/api/sessions/missing/respond", "/api/sessions/missing/drop"} {
		resp, err := app.Test(httptest.NewRequest("POST", path, nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode, path)
	}

	resp, err = app.Test(httptest.NewRequest("GET", realtimetest.Path, nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}

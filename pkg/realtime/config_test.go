package realtime

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.URL != DefaultURL {
		t.Errorf("expected URL %s, got %s", DefaultURL, cfg.URL)
	}
	if cfg.ConvertTimeout != 2*time.Second {
		t.Errorf("expected ConvertTimeout 2s, got %v", cfg.ConvertTimeout)
	}
	if cfg.MaxQueueChunks != 0 {
		t.Errorf("expected unbounded queue, got %d", cfg.MaxQueueChunks)
	}
	if cfg.Converter == nil {
		t.Error("expected default converter")
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestConfig_Endpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Apply(WithURL("wss://example.com/v1/realtime?x=1"), WithModel("m1"))

	endpoint, err := cfg.endpoint()
	if err != nil {
		t.Fatalf("endpoint error: %v", err)
	}
	u, _ := url.Parse(endpoint)
	if u.Query().Get("model") != "m1" || u.Query().Get("x") != "1" {
		t.Errorf("unexpected endpoint %s", endpoint)
	}
}

func TestConfig_TokenSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Apply(WithAPIKey("sk-test"))

	tok, err := cfg.tokenSource().Token()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if tok.Type()+" "+tok.AccessToken != "Bearer sk-test" {
		t.Errorf("unexpected header value %q", tok.Type()+" "+tok.AccessToken)
	}

	custom := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ephemeral"})
	cfg.Apply(WithTokenSource(custom))
	tok, _ = cfg.tokenSource().Token()
	if tok.AccessToken != "ephemeral" {
		t.Errorf("token source not preferred over API key")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &ConnectError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &ConnectError{StatusCode: http.StatusBadGateway}, true},
		{"unauthorized", &ConnectError{StatusCode: http.StatusUnauthorized}, false},
		{"api server error", &APIError{Type: "server_error"}, true},
		{"api invalid request", &APIError{Type: "invalid_request_error"}, false},
		{"plain", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateAwaitingConfig: "awaiting_config",
		StateStreaming:      "streaming",
		StateEnded:          "ended",
		StateClosed:         "closed",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("State(%d).String() = %s, want %s", s, s.String(), want)
		}
	}
	if StateEnded.IsConnected() || !StateAwaitingConfig.IsConnected() {
		t.Error("IsConnected mismatch")
	}
}

func TestParseServerEvent(t *testing.T) {
	if _, err := ParseServerEvent([]byte(`{"delta":"AA=="}`)); err == nil {
		t.Error("expected error for missing type")
	}

	var protoErr *ProtocolError
	if _, err := ParseServerEvent([]byte(`nope`)); !errors.As(err, &protoErr) {
		t.Errorf("expected ProtocolError, got %v", err)
	}

	ev, err := ParseServerEvent([]byte(`{"type":"response.audio.delta","delta":"AAEC"}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	pcm, err := ev.DecodeAudio()
	if err != nil || len(pcm) != 3 {
		t.Errorf("unexpected decode result %v %v", pcm, err)
	}
}

func TestParseServerEvent_UnhandledTypeShape(t *testing.T) {
	ev, err := ParseServerEvent([]byte(`{"type":"response.text.delta","event_id":"evt_9","delta":5,"session":"x","error":[1]}`))
	if err != nil {
		t.Fatalf("unhandled type should parse, got %v", err)
	}
	if ev.Type != "response.text.delta" || ev.EventID != "evt_9" {
		t.Errorf("unexpected envelope %+v", ev)
	}
	if ev.Delta != "" || ev.Session != nil || ev.Error != nil {
		t.Errorf("payload of unhandled type should not be decoded: %+v", ev)
	}

	var protoErr *ProtocolError
	_, err = ParseServerEvent([]byte(`{"type":"response.audio.delta","delta":5}`))
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError for bad audio delta, got %v", err)
	}
	if protoErr.EventType != EventAudioDelta {
		t.Errorf("expected event type %q, got %q", EventAudioDelta, protoErr.EventType)
	}
}

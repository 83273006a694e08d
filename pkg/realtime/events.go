package realtime

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// Server event types handled by Session.
const (
	EventSessionCreated = "session.created"
	EventSessionEnded   = "session.ended"
	EventAudioDelta     = "response.audio.delta"
	EventError          = "error"
)

// Client event types sent by Session.
const (
	EventSessionUpdate    = "session.update"
	EventInputAudioAppend = "input_audio_buffer.append"
	InputAudioFormatPCM16 = "pcm16"
	eventIDPrefix         = "evt_"
)

// ClientEvent is the base structure for all client events.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// SessionConfig is the session configuration sent in session.update.
type SessionConfig struct {
	InputAudioFormat string `json:"input_audio_format,omitempty"`
}

// SessionUpdateEvent updates session configuration.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// InputAudioBufferAppendEvent appends audio to the input buffer.
type InputAudioBufferAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

// NewSessionUpdate builds the single format update sent after session.created.
func NewSessionUpdate(inputFormat string) SessionUpdateEvent {
	return SessionUpdateEvent{
		ClientEvent: newClientEvent(EventSessionUpdate),
		Session:     SessionConfig{InputAudioFormat: inputFormat},
	}
}

// NewInputAudioAppend builds an append event carrying base64 PCM.
func NewInputAudioAppend(pcm []byte) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{
		ClientEvent: newClientEvent(EventInputAudioAppend),
		Audio:       base64.StdEncoding.EncodeToString(pcm),
	}
}

func newClientEvent(eventType string) ClientEvent {
	return ClientEvent{EventID: eventIDPrefix + uuid.NewString(), Type: eventType}
}

// ServerEvent is the union of the server events Session reads.
// Fields not relevant to Type are empty.
type ServerEvent struct {
	Type    string       `json:"type"`
	EventID string       `json:"event_id,omitempty"`
	Session *SessionInfo `json:"session,omitempty"`

	// response.audio.delta
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta,omitempty"`

	// error
	Error *ErrorDetail `json:"error,omitempty"`
}

// SessionInfo is the session object in session.created.
type SessionInfo struct {
	ID                string `json:"id"`
	Model             string `json:"model,omitempty"`
	InputAudioFormat  string `json:"input_audio_format,omitempty"`
	OutputAudioFormat string `json:"output_audio_format,omitempty"`
}

// ErrorDetail is the payload of an error event.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// ParseServerEvent decodes one inbound text message. Only the envelope of
// event types Session does not handle is decoded, so their payload shape
// never fails the parse.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	var env struct {
		Type    string `json:"type"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: "malformed JSON", Cause: err}
	}
	if env.Type == "" {
		return nil, &ProtocolError{Reason: "missing type"}
	}

	switch env.Type {
	case EventSessionCreated, EventSessionEnded, EventAudioDelta, EventError:
	default:
		return &ServerEvent{Type: env.Type, EventID: env.EventID}, nil
	}

	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &ProtocolError{EventType: env.Type, Reason: "malformed payload", Cause: err}
	}
	return &ev, nil
}

// DecodeAudio returns the raw PCM of an audio delta.
func (e *ServerEvent) DecodeAudio() ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(e.Delta)
	if err != nil {
		return nil, &ProtocolError{EventType: e.Type, Reason: "invalid base64 delta", Cause: err}
	}
	return pcm, nil
}

// APIError converts an error event to an *APIError.
func (e *ServerEvent) APIError() *APIError {
	if e.Error == nil {
		return &APIError{Message: "unknown error"}
	}
	return &APIError{
		Type:    e.Error.Type,
		Code:    e.Error.Code,
		Message: e.Error.Message,
		EventID: e.Error.EventID,
	}
}

package realtime

// State is the lifecycle state of a Session.
type State int32

const (
	// StateDisconnected means no transport exists. Connect is only valid here.
	StateDisconnected State = iota
	// StateConnecting means the websocket handshake is in progress.
	StateConnecting
	// StateAwaitingConfig means the transport is open and the session has
	// not yet announced itself.
	StateAwaitingConfig
	// StateStreaming means the format update was sent and audio flows.
	StateStreaming
	// StateEnded means the server ended the session.
	StateEnded
	// StateClosed means the transport closed without a local Disconnect.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsConnected reports whether the transport is open and the session accepts
// audio in both directions.
func (s State) IsConnected() bool {
	return s == StateAwaitingConfig || s == StateStreaming
}

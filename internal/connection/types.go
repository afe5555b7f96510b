package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/fleet-tracker/internal/router"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStaleConnection    = errors.New("connection stale (no ping)")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrAlreadyOpen        = errors.New("transport already open")
	ErrNoTransports       = errors.New("no transports configured")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// TransportKind names a concrete transport.
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
	TransportPolling   TransportKind = "polling"
)

// Dialect selects the outbound subscription event names.
type Dialect string

const (
	// DialectStandard emits subscribe/unsubscribe {"id": ...}.
	DialectStandard Dialect = "standard"
	// DialectLegacy emits subscribeToVehicle/unsubscribeFromVehicle {"plate": ...}.
	DialectLegacy Dialect = "legacy"
)

// Outbound event names.
const (
	eventSubscribe         = "subscribe"
	eventUnsubscribe       = "unsubscribe"
	eventSubscribeLegacy   = "subscribeToVehicle"
	eventUnsubscribeLegacy = "unsubscribeFromVehicle"
)

// subscriptionWire is the standard subscribe/unsubscribe payload.
type subscriptionWire struct {
	ID string `json:"id"`
}

// legacySubscriptionWire is the legacy subscribeToVehicle payload.
type legacySubscriptionWire struct {
	Plate string `json:"plate"`
}

// TimestampedMessage wraps raw frame data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes
	Binary     bool      // True for binary websocket frames
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// Frame converts the message into a router frame.
func (m TimestampedMessage) Frame() router.Frame {
	return router.Frame{
		Data:       m.Data,
		Binary:     m.Binary,
		ReceivedAt: m.ReceivedAt,
	}
}

// EventKind is a transport lifecycle or data notification.
type EventKind string

const (
	EventConnect         EventKind = "connect"
	EventDisconnect      EventKind = "disconnect"
	EventConnectError    EventKind = "connect_error"
	EventMessage         EventKind = "message"
	EventReconnectFailed EventKind = "reconnect_failed"
)

// Event is emitted by a Transport.
type Event struct {
	Kind      EventKind
	Message   TimestampedMessage // Set for EventMessage
	Err       error              // Set for disconnect, connect_error, reconnect_failed
	SessionID string             // Set for EventConnect
	Transport TransportKind      // Set for EventConnect
}

// ClientConfig configures a single transport client.
type ClientConfig struct {
	URL              string        // Fully resolved endpoint (ws:// for websocket, http:// for polling)
	PingTimeout      time.Duration // Max time without ping/pong before the link is stale (0 = disabled)
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial/handshake timeout
	PollWait         time.Duration // Long-poll wait per request
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		PollWait:         20 * time.Second,
		BufferSize:       1000,
	}
}

// BackoffConfig configures reconnection delays.
type BackoffConfig struct {
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	MaxAttempts         int     // Consecutive failed attempts before giving up (0 = unlimited)
	RandomizationFactor float64 // 0 disables jitter
}

// DefaultBackoffConfig returns the reconnection defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay:        1 * time.Second,
		MaxDelay:            5 * time.Second,
		MaxAttempts:         5,
		RandomizationFactor: 0.5,
	}
}

// SocketConfig configures a Socket transport.
type SocketConfig struct {
	URL           string          // Server base URL (http, https, ws or wss)
	Transports    []TransportKind // Tried in order on every connect attempt
	WebSocketPath string
	PollingPath   string
	Client        ClientConfig // URL is filled in per transport
	Backoff       BackoffConfig
	EventBuffer   int
}

// DefaultSocketConfig returns sensible defaults.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		Transports:    []TransportKind{TransportWebSocket, TransportPolling},
		WebSocketPath: "/ws",
		PollingPath:   "/poll",
		Client:        DefaultClientConfig(),
		Backoff:       DefaultBackoffConfig(),
		EventBuffer:   1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Dialect       Dialect
	Subscriptions []string      // Static subscription id set
	ShutdownWait  time.Duration // Max wait for the event loop on Disconnect
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Dialect:      DialectStandard,
		ShutdownWait: 5 * time.Second,
	}
}

// State is the Connection Manager lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateDisconnected, StateConnecting, StateConnected, StateReconnecting} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}

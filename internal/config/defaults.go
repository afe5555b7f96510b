package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWebSocketPath       = "/ws"
	DefaultPollingPath         = "/poll"
	DefaultDialect             = "standard"
	DefaultInitialDelay        = 1 * time.Second
	DefaultMaxDelay            = 5 * time.Second
	DefaultMaxAttempts         = 5
	DefaultRandomizationFactor = 0.5
	DefaultPingTimeout         = 60 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
	DefaultHandshakeTimeout    = 10 * time.Second
	DefaultPollWait            = 20 * time.Second
	DefaultBufferSize          = 1000
	DefaultServerAddr          = "127.0.0.1:8080"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// DefaultTransports is the transport preference order.
var DefaultTransports = []string{"websocket", "polling"}

// DefaultSubscriptions is the static entity set tracked when none is configured.
var DefaultSubscriptions = []string{
	"DXB-CX-36357",
	"DXB-DX-36359",
	"DXB-IX-36356",
	"DXB-DX-36353",
	"DXB-DX-36357",
	"DXB-AX-36352",
	"DXB-IX-36360",
	"DXB-XX-36353",
	"DXB-CX-36358",
	"DXB-BX-36355",
}

func (c *TrackerConfig) applyDefaults() {
	// Transport defaults
	t := &c.Transport
	if len(t.Transports) == 0 {
		t.Transports = append([]string(nil), DefaultTransports...)
	}
	if t.WebSocketPath == "" {
		t.WebSocketPath = DefaultWebSocketPath
	}
	if t.PollingPath == "" {
		t.PollingPath = DefaultPollingPath
	}
	if t.Dialect == "" {
		t.Dialect = DefaultDialect
	}
	if t.InitialDelay == 0 {
		t.InitialDelay = DefaultInitialDelay
	}
	if t.MaxDelay == 0 {
		t.MaxDelay = DefaultMaxDelay
	}
	if t.MaxAttempts == nil {
		n := DefaultMaxAttempts
		t.MaxAttempts = &n
	}
	if t.RandomizationFactor == nil {
		f := DefaultRandomizationFactor
		t.RandomizationFactor = &f
	}
	if t.PingTimeout == nil {
		d := DefaultPingTimeout
		t.PingTimeout = &d
	}
	if t.WriteTimeout == 0 {
		t.WriteTimeout = DefaultWriteTimeout
	}
	if t.HandshakeTimeout == 0 {
		t.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if t.PollWait == 0 {
		t.PollWait = DefaultPollWait
	}
	if t.BufferSize == 0 {
		t.BufferSize = DefaultBufferSize
	}

	// An explicit empty list is kept: the tracker then only listens.
	if c.Subscriptions == nil {
		c.Subscriptions = append([]string(nil), DefaultSubscriptions...)
	}

	// Store defaults
	if c.Store.RejectStale == nil {
		v := true
		c.Store.RejectStale = &v
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

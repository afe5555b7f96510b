package config

import (
	"log/slog"
	"strings"

	"github.com/rickgao/fleet-tracker/internal/connection"
	"github.com/rickgao/fleet-tracker/internal/store"
)

// SocketConfig builds the transport config. Call after applyDefaults.
func (c *TrackerConfig) SocketConfig() connection.SocketConfig {
	t := c.Transport
	cfg := connection.DefaultSocketConfig()

	cfg.URL = t.URL
	cfg.Transports = make([]connection.TransportKind, 0, len(t.Transports))
	for _, kind := range t.Transports {
		cfg.Transports = append(cfg.Transports, connection.TransportKind(kind))
	}
	cfg.WebSocketPath = t.WebSocketPath
	cfg.PollingPath = t.PollingPath

	cfg.Client.WriteTimeout = t.WriteTimeout
	cfg.Client.HandshakeTimeout = t.HandshakeTimeout
	cfg.Client.PollWait = t.PollWait
	cfg.Client.BufferSize = t.BufferSize
	if t.PingTimeout != nil {
		cfg.Client.PingTimeout = *t.PingTimeout
	}

	cfg.Backoff.InitialDelay = t.InitialDelay
	cfg.Backoff.MaxDelay = t.MaxDelay
	if t.MaxAttempts != nil {
		cfg.Backoff.MaxAttempts = *t.MaxAttempts
	}
	if t.RandomizationFactor != nil {
		cfg.Backoff.RandomizationFactor = *t.RandomizationFactor
	}

	cfg.EventBuffer = t.BufferSize
	return cfg
}

// ManagerConfig builds the Connection Manager config.
func (c *TrackerConfig) ManagerConfig() connection.ManagerConfig {
	cfg := connection.DefaultManagerConfig()
	cfg.Dialect = connection.Dialect(c.Transport.Dialect)
	cfg.Subscriptions = append([]string(nil), c.Subscriptions...)
	return cfg
}

// StoreOptions builds the entity store options.
func (c *TrackerConfig) StoreOptions() store.Options {
	return store.Options{RejectStale: c.Store.RejectStale == nil || *c.Store.RejectStale}
}

// SlogLevel maps log.level to a slog level. Unknown names map to Info.
func (c *TrackerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

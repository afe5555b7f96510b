package config

import "time"

// TrackerConfig is the root configuration for a tracker instance.
type TrackerConfig struct {
	Transport     TransportConfig `yaml:"transport"`
	Subscriptions []string        `yaml:"subscriptions" validate:"dive,required"`
	Store         StoreConfig     `yaml:"store"`
	Server        ServerConfig    `yaml:"server"`
	Log           LogConfig       `yaml:"log"`
}

// TransportConfig holds the realtime connection settings.
type TransportConfig struct {
	URL           string   `yaml:"url" validate:"required,url"`
	Transports    []string `yaml:"transports" validate:"min=1,dive,oneof=websocket polling"`
	WebSocketPath string   `yaml:"websocket_path" validate:"startswith=/"`
	PollingPath   string   `yaml:"polling_path" validate:"startswith=/"`
	Dialect       string   `yaml:"dialect" validate:"oneof=standard legacy"`

	InitialDelay        time.Duration `yaml:"initial_delay" validate:"gt=0"`
	MaxDelay            time.Duration `yaml:"max_delay" validate:"gt=0"`
	MaxAttempts         *int          `yaml:"max_attempts" validate:"omitempty,gte=0"` // 0 = retry forever
	RandomizationFactor *float64      `yaml:"randomization_factor" validate:"omitempty,gte=0,lte=1"`

	PingTimeout      *time.Duration `yaml:"ping_timeout" validate:"omitempty,gte=0"` // 0 disables stale detection
	WriteTimeout     time.Duration  `yaml:"write_timeout" validate:"gt=0"`
	HandshakeTimeout time.Duration  `yaml:"handshake_timeout" validate:"gt=0"`
	PollWait         time.Duration  `yaml:"poll_wait" validate:"gt=0"`
	BufferSize       int            `yaml:"buffer_size" validate:"gte=1"`
}

// StoreConfig holds entity store settings.
type StoreConfig struct {
	// RejectStale drops updates older than the stored snapshot. Defaults to true.
	RejectStale *bool `yaml:"reject_stale"`
}

// ServerConfig holds the presentation HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

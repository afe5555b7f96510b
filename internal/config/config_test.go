package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/fleet-tracker/internal/connection"
)

func TestLoad(t *testing.T) {
	yaml := `
transport:
  url: https://tracking.example.com
  transports: [polling]
  dialect: legacy
  initial_delay: 2s
  max_delay: 30s
  max_attempts: 0
subscriptions:
  - DXB-CX-36357
  - DXB-DX-36359
server:
  addr: 0.0.0.0:9000
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transport.URL != "https://tracking.example.com" {
		t.Errorf("Transport.URL = %q, want %q", cfg.Transport.URL, "https://tracking.example.com")
	}
	if len(cfg.Transport.Transports) != 1 || cfg.Transport.Transports[0] != "polling" {
		t.Errorf("Transport.Transports = %v, want [polling]", cfg.Transport.Transports)
	}
	if cfg.Transport.InitialDelay != 2*time.Second {
		t.Errorf("Transport.InitialDelay = %v, want 2s", cfg.Transport.InitialDelay)
	}
	if cfg.Transport.MaxAttempts == nil || *cfg.Transport.MaxAttempts != 0 {
		t.Errorf("Transport.MaxAttempts = %v, want explicit 0", cfg.Transport.MaxAttempts)
	}
	if len(cfg.Subscriptions) != 2 {
		t.Errorf("len(Subscriptions) = %d, want 2", len(cfg.Subscriptions))
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "0.0.0.0:9000")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SOCKET_SERVER_URL", "http://localhost:3000")

	yaml := `
transport:
  url: ${TEST_SOCKET_SERVER_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transport.URL != "http://localhost:3000" {
		t.Errorf("Transport.URL = %q, want %q", cfg.Transport.URL, "http://localhost:3000")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load expected error for missing file")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("transport: [unclosed"))
	if err == nil {
		t.Fatal("Parse expected error for invalid yaml")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
transport:
  url: http://localhost:3000
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	tr := cfg.Transport
	if len(tr.Transports) != 2 || tr.Transports[0] != "websocket" || tr.Transports[1] != "polling" {
		t.Errorf("Transport.Transports = %v, want [websocket polling]", tr.Transports)
	}
	if tr.InitialDelay != DefaultInitialDelay {
		t.Errorf("Transport.InitialDelay = %v, want default %v", tr.InitialDelay, DefaultInitialDelay)
	}
	if tr.MaxDelay != DefaultMaxDelay {
		t.Errorf("Transport.MaxDelay = %v, want default %v", tr.MaxDelay, DefaultMaxDelay)
	}
	if *tr.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Transport.MaxAttempts = %d, want default %d", *tr.MaxAttempts, DefaultMaxAttempts)
	}
	if *tr.PingTimeout != DefaultPingTimeout {
		t.Errorf("Transport.PingTimeout = %v, want default %v", *tr.PingTimeout, DefaultPingTimeout)
	}
	if tr.Dialect != DefaultDialect {
		t.Errorf("Transport.Dialect = %q, want default %q", tr.Dialect, DefaultDialect)
	}
	if len(cfg.Subscriptions) != len(DefaultSubscriptions) {
		t.Errorf("len(Subscriptions) = %d, want default %d", len(cfg.Subscriptions), len(DefaultSubscriptions))
	}
	if cfg.Store.RejectStale == nil || !*cfg.Store.RejectStale {
		t.Error("Store.RejectStale should default to true")
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultServerAddr)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoadWithDefaultsKeepsExplicitValues(t *testing.T) {
	yaml := `
transport:
  url: http://localhost:3000
  ping_timeout: 0s
  randomization_factor: 0
subscriptions: []
store:
  reject_stale: false
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if *cfg.Transport.PingTimeout != 0 {
		t.Errorf("Transport.PingTimeout = %v, want explicit 0", *cfg.Transport.PingTimeout)
	}
	if *cfg.Transport.RandomizationFactor != 0 {
		t.Errorf("Transport.RandomizationFactor = %v, want explicit 0", *cfg.Transport.RandomizationFactor)
	}
	if len(cfg.Subscriptions) != 0 {
		t.Errorf("Subscriptions = %v, want explicit empty list", cfg.Subscriptions)
	}
	if *cfg.Store.RejectStale {
		t.Error("Store.RejectStale = true, want explicit false")
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "transport:\n  dialect: legacy\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("LoadAndValidate expected error for missing url")
	}
	if got, want := err.Error(), "validate config: transport.url is required"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TrackerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*TrackerConfig) {},
			wantErr: "",
		},
		{
			name:    "missing url",
			mutate:  func(c *TrackerConfig) { c.Transport.URL = "" },
			wantErr: "transport.url is required",
		},
		{
			name:    "relative url",
			mutate:  func(c *TrackerConfig) { c.Transport.URL = "localhost" },
			wantErr: `transport.url must be an absolute URL, got "localhost"`,
		},
		{
			name:    "unknown transport",
			mutate:  func(c *TrackerConfig) { c.Transport.Transports = []string{"websocket", "carrier-pigeon"} },
			wantErr: `transport.transports[1] must be one of [websocket polling], got "carrier-pigeon"`,
		},
		{
			name:    "duplicate transport",
			mutate:  func(c *TrackerConfig) { c.Transport.Transports = []string{"polling", "polling"} },
			wantErr: `transport.transports lists "polling" twice`,
		},
		{
			name:    "unknown dialect",
			mutate:  func(c *TrackerConfig) { c.Transport.Dialect = "v3" },
			wantErr: `transport.dialect must be one of [standard legacy], got "v3"`,
		},
		{
			name:    "relative websocket path",
			mutate:  func(c *TrackerConfig) { c.Transport.WebSocketPath = "ws" },
			wantErr: `transport.websocket_path must start with "/"`,
		},
		{
			name: "max delay below initial delay",
			mutate: func(c *TrackerConfig) {
				c.Transport.InitialDelay = 5 * time.Second
				c.Transport.MaxDelay = time.Second
			},
			wantErr: "transport.max_delay (1s) cannot be less than initial_delay (5s)",
		},
		{
			name: "negative attempts",
			mutate: func(c *TrackerConfig) {
				n := -1
				c.Transport.MaxAttempts = &n
			},
			wantErr: "transport.max_attempts must be >= 0",
		},
		{
			name: "randomization factor above one",
			mutate: func(c *TrackerConfig) {
				f := 1.5
				c.Transport.RandomizationFactor = &f
			},
			wantErr: "transport.randomization_factor must be <= 1",
		},
		{
			name: "ping timeout below write timeout",
			mutate: func(c *TrackerConfig) {
				d := time.Second
				c.Transport.PingTimeout = &d
			},
			wantErr: "transport.ping_timeout (1s) cannot be less than write_timeout (5s)",
		},
		{
			name: "ping disabled",
			mutate: func(c *TrackerConfig) {
				d := time.Duration(0)
				c.Transport.PingTimeout = &d
			},
			wantErr: "",
		},
		{
			name:    "empty subscription id",
			mutate:  func(c *TrackerConfig) { c.Subscriptions = []string{"DXB-CX-36357", ""} },
			wantErr: "subscriptions[1] is required",
		},
		{
			name:    "bad server addr",
			mutate:  func(c *TrackerConfig) { c.Server.Addr = "8080" },
			wantErr: `server.addr must be host:port, got "8080"`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *TrackerConfig) { c.Log.Level = "trace" },
			wantErr: `log.level must be one of [debug info warn error], got "trace"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestSocketConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.Transports = []string{"polling", "websocket"}
	n := 0
	cfg.Transport.MaxAttempts = &n

	sc := cfg.SocketConfig()

	if sc.URL != "http://localhost:3000" {
		t.Errorf("URL = %q, want %q", sc.URL, "http://localhost:3000")
	}
	want := []connection.TransportKind{connection.TransportPolling, connection.TransportWebSocket}
	if len(sc.Transports) != len(want) || sc.Transports[0] != want[0] || sc.Transports[1] != want[1] {
		t.Errorf("Transports = %v, want %v", sc.Transports, want)
	}
	if sc.Backoff.InitialDelay != DefaultInitialDelay || sc.Backoff.MaxDelay != DefaultMaxDelay {
		t.Errorf("Backoff = %+v, want %v..%v", sc.Backoff, DefaultInitialDelay, DefaultMaxDelay)
	}
	if sc.Backoff.MaxAttempts != 0 {
		t.Errorf("Backoff.MaxAttempts = %d, want 0", sc.Backoff.MaxAttempts)
	}
	if sc.Backoff.RandomizationFactor != DefaultRandomizationFactor {
		t.Errorf("Backoff.RandomizationFactor = %v, want %v", sc.Backoff.RandomizationFactor, DefaultRandomizationFactor)
	}
	if sc.Client.PingTimeout != DefaultPingTimeout {
		t.Errorf("Client.PingTimeout = %v, want %v", sc.Client.PingTimeout, DefaultPingTimeout)
	}
	if sc.WebSocketPath != DefaultWebSocketPath || sc.PollingPath != DefaultPollingPath {
		t.Errorf("paths = %q, %q", sc.WebSocketPath, sc.PollingPath)
	}
}

func TestManagerConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.Dialect = "legacy"

	mc := cfg.ManagerConfig()

	if mc.Dialect != connection.DialectLegacy {
		t.Errorf("Dialect = %q, want %q", mc.Dialect, connection.DialectLegacy)
	}
	if len(mc.Subscriptions) != len(DefaultSubscriptions) {
		t.Errorf("len(Subscriptions) = %d, want %d", len(mc.Subscriptions), len(DefaultSubscriptions))
	}

	// The manager config owns its slice.
	mc.Subscriptions[0] = "changed"
	if cfg.Subscriptions[0] == "changed" {
		t.Error("ManagerConfig shares the subscriptions slice")
	}
}

func TestStoreOptions(t *testing.T) {
	cfg := validConfig()
	if !cfg.StoreOptions().RejectStale {
		t.Error("RejectStale = false, want default true")
	}

	off := false
	cfg.Store.RejectStale = &off
	if cfg.StoreOptions().RejectStale {
		t.Error("RejectStale = true, want false")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &TrackerConfig{Log: LogConfig{Level: tt.level}}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Transport.URL != "" {
		t.Errorf("Transport.URL = %q, want empty", cfg.Transport.URL)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Default() should fail validation until a url is set")
	}

	cfg.Transport.URL = "http://localhost:3000"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func validConfig() *TrackerConfig {
	cfg := &TrackerConfig{Transport: TransportConfig{URL: "http://localhost:3000"}}
	cfg.applyDefaults()
	return cfg
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport is a reconnecting session with the tracking server.
type Transport interface {
	// Open starts the connect loop and returns the event stream. The channel
	// is closed once the loop stops, either after Close, after ctx is
	// cancelled, or after reconnect attempts are exhausted.
	Open(ctx context.Context) (<-chan Event, error)

	// Send writes one envelope on the current link.
	Send(data []byte) error

	// Close stops the loop, cancelling any pending backoff, and waits for it
	// to exit. A closed Transport may be opened again.
	Close() error
}

// Socket implements Transport over websocket and long-polling clients.
type Socket struct {
	cfg     SocketConfig
	logger  *slog.Logger
	backoff backoff

	// newClient builds a client for one connect attempt.
	newClient func(kind TransportKind, cfg ClientConfig) (Client, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	client  Client
}

// NewSocket creates a Transport for cfg.
func NewSocket(cfg SocketConfig, logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Socket{
		cfg:     cfg,
		logger:  logger,
		backoff: newBackoff(cfg.Backoff),
	}
	s.newClient = s.buildClient
	return s
}

// Open starts the connect loop.
func (s *Socket) Open(ctx context.Context) (<-chan Event, error) {
	if len(s.cfg.Transports) == 0 {
		return nil, ErrNoTransports
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		select {
		case <-s.done:
			// Loop already stopped on its own.
			s.cancel()
		default:
			return nil, ErrAlreadyOpen
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, s.cfg.EventBuffer)

	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx, events, s.done)

	return events, nil
}

// Send writes to the current link.
func (s *Socket) Send(data []byte) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	return client.Send(data)
}

// Close stops the connect loop.
func (s *Socket) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// run is the connect/pump/backoff loop. It is the only sender on events.
func (s *Socket) run(ctx context.Context, events chan<- Event, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	failures := 0
	for {
		client, kind, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			failures++
			s.logger.Warn("connect failed", "attempt", failures, "error", err)
			if !emit(Event{Kind: EventConnectError, Err: err}) {
				return
			}

			if limit := s.cfg.Backoff.MaxAttempts; limit > 0 && failures >= limit {
				s.logger.Error("giving up reconnecting", "attempts", failures)
				emit(Event{Kind: EventReconnectFailed, Err: fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, failures, err)})
				return
			}

			if !s.sleep(ctx, s.backoff.Duration(failures-1)) {
				return
			}
			continue
		}

		failures = 0
		sessionID := uuid.NewString()

		s.mu.Lock()
		s.client = client
		s.mu.Unlock()

		s.logger.Info("connected", "transport", kind, "session_id", sessionID)

		var linkErr error
		if emit(Event{Kind: EventConnect, SessionID: sessionID, Transport: kind}) {
			linkErr = s.pump(ctx, client, emit)
		}

		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()
		client.Close()

		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("disconnected", "transport", kind, "session_id", sessionID, "error", linkErr)
		if !emit(Event{Kind: EventDisconnect, Err: linkErr}) {
			return
		}

		if !s.sleep(ctx, s.backoff.Duration(0)) {
			return
		}
	}
}

// dial tries each configured transport in order; the first to connect wins.
func (s *Socket) dial(ctx context.Context) (Client, TransportKind, error) {
	var errs []error

	for _, kind := range s.cfg.Transports {
		cfg := s.cfg.Client
		endpoint, err := endpointURL(s.cfg.URL, s.pathFor(kind), kind)
		if err != nil {
			return nil, "", err
		}
		cfg.URL = endpoint

		client, err := s.newClient(kind, cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}

		if err := client.Connect(ctx); err != nil {
			client.Close()
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		return client, kind, nil
	}

	return nil, "", errors.Join(errs...)
}

// pump forwards client frames as message events until the link fails.
func (s *Socket) pump(ctx context.Context, client Client, emit func(Event) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-client.Errors():
			// Deliver frames that arrived before the failure.
			for {
				select {
				case msg := <-client.Messages():
					if !emit(Event{Kind: EventMessage, Message: msg}) {
						return ctx.Err()
					}
				default:
					return err
				}
			}

		case msg := <-client.Messages():
			if !emit(Event{Kind: EventMessage, Message: msg}) {
				return ctx.Err()
			}
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether the loop should
// continue.
func (s *Socket) sleep(ctx context.Context, d time.Duration) bool {
	s.logger.Debug("reconnecting", "delay", d)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Socket) pathFor(kind TransportKind) string {
	if kind == TransportPolling {
		return s.cfg.PollingPath
	}
	return s.cfg.WebSocketPath
}

func (s *Socket) buildClient(kind TransportKind, cfg ClientConfig) (Client, error) {
	logger := s.logger.With("transport", kind)
	switch kind {
	case TransportWebSocket:
		return NewClient(cfg, logger), nil
	case TransportPolling:
		return NewPollingClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

// endpointURL joins base and path, switching the scheme to match kind.
func endpointURL(base, path string, kind TransportKind) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	secure := u.Scheme == "https" || u.Scheme == "wss"
	switch {
	case kind == TransportWebSocket && secure:
		u.Scheme = "wss"
	case kind == TransportWebSocket:
		u.Scheme = "ws"
	case secure:
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}

	if path != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}

	return u.String(), nil
}

package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/fleet-tracker/internal/api"
)

// pollClient implements Client over the HTTP long-polling session API.
type pollClient struct {
	cfg    ClientConfig
	api    *api.Client
	logger *slog.Logger

	sid string

	messages chan TimestampedMessage
	errors   chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewPollingClient creates a long-polling client. cfg.URL is the session
// base URL.
func NewPollingClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	// Reconnects belong to the socket, so requests are not retried here.
	apiClient := api.NewClient(cfg.URL,
		api.WithTimeout(cfg.PollWait+cfg.HandshakeTimeout),
		api.WithRetries(0, 0),
		api.WithLogger(logger),
	)

	return &pollClient{
		cfg:      cfg,
		api:      apiClient,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
	}
}

// Connect opens a session and starts the poll loop.
func (c *pollClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	openCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	sid, err := c.api.OpenSession(openCtx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sid = sid
	c.connected = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop()

	c.logger.Debug("polling session opened", "url", c.cfg.URL, "sid", sid)

	return nil
}

// Close stops polling and releases the server-side session.
func (c *pollClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	wasConnected := c.cancel != nil
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		return nil
	}

	c.cancel()
	c.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.api.CloseSession(ctx, c.sid)
}

// Send emits one envelope on the session.
func (c *pollClient) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	parent := c.ctx
	c.mu.RUnlock()

	ctx := parent
	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.cfg.WriteTimeout)
		defer cancel()
	}
	return c.api.Emit(ctx, c.sid, data)
}

// Messages returns the messages channel.
func (c *pollClient) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *pollClient) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *pollClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// pollLoop long-polls until Close or until the session fails.
func (c *pollClient) pollLoop() {
	defer c.wg.Done()

	for {
		events, err := c.api.Poll(c.ctx, c.sid, c.cfg.PollWait)
		receivedAt := time.Now()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if errors.Is(err, api.ErrSessionGone) {
				c.logger.Warn("polling session dropped by server", "sid", c.sid)
			}

			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()

			select {
			case c.errors <- err:
			default:
			}
			return
		}

		for _, raw := range events {
			msg := TimestampedMessage{
				Data:       raw,
				ReceivedAt: receivedAt,
			}
			select {
			case c.messages <- msg:
			case <-c.ctx.Done():
				return
			default:
				c.logger.Warn("message buffer full, dropping message")
			}
		}
	}
}

package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/fleet-tracker/internal/router"
	"github.com/rickgao/fleet-tracker/internal/store"
)

// Manager owns the transport session and mirrors it into the Entity Store.
type Manager interface {
	// Connect starts the session. It is a no-op while connecting or connected.
	Connect(ctx context.Context) error

	// Disconnect unsubscribes (best effort), closes the transport and waits
	// for the event loop to stop. Safe to call when never connected.
	Disconnect(ctx context.Context) error

	// State returns the lifecycle state.
	State() State

	// Stats returns current connection and subscription statistics.
	Stats() ManagerStats
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State         State              `json:"state"`
	SessionID     string             `json:"session_id,omitempty"`
	Transport     TransportKind      `json:"transport,omitempty"`
	Connects      int                `json:"connects"`
	Subscriptions int                `json:"subscriptions"` // Outstanding subscribes on the current link
	Router        router.RouterStats `json:"router"`
}

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	transport Transport
	store     *store.Store
	router    *router.Router
	logger    *slog.Logger

	// Deduplicated subscription set in configured order.
	subscriptions []string

	mu          sync.Mutex
	state       State
	sessionID   string
	kind        TransportKind
	connects    int
	outstanding map[string]struct{}
	loopDone    chan struct{}
	closing     bool

	eventsHandled atomic.Int64
	loopsEnded    atomic.Int64
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, transport Transport, st *store.Store, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectStandard
	}

	seen := make(map[string]struct{}, len(cfg.Subscriptions))
	subs := make([]string, 0, len(cfg.Subscriptions))
	for _, id := range cfg.Subscriptions {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		subs = append(subs, id)
	}

	return &manager{
		cfg:           cfg,
		transport:     transport,
		store:         st,
		router:        router.NewRouter(logger.With("component", "router")),
		logger:        logger,
		subscriptions: subs,
		outstanding:   make(map[string]struct{}),
	}
}

// Connect starts the transport if it is not already running.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateDisconnected {
		return nil
	}

	events, err := m.transport.Open(ctx)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	m.state = StateConnecting
	m.closing = false
	m.loopDone = make(chan struct{})

	go m.loop(events, m.loopDone)

	m.logger.Info("connection manager started",
		"subscriptions", len(m.subscriptions),
		"dialect", m.cfg.Dialect,
	)

	return nil
}

// Disconnect tears the session down.
func (m *manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.loopDone == nil || m.closing {
		m.mu.Unlock()
		return nil
	}
	m.closing = true
	done := m.loopDone
	m.mu.Unlock()

	m.logger.Info("stopping connection manager")

	// Best effort: a dead link must not block the close.
	for _, id := range m.subscriptions {
		if err := m.emitSubscription(id, false); err != nil {
			m.logger.Debug("unsubscribe failed", "id", id, "error", err)
		}
	}

	if err := m.transport.Close(); err != nil {
		m.logger.Warn("transport close failed", "error", err)
	}

	wait := m.cfg.ShutdownWait
	if wait <= 0 {
		wait = DefaultManagerConfig().ShutdownWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	case <-timer.C:
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.sessionID = ""
	m.kind = ""
	m.loopDone = nil
	clear(m.outstanding)
	m.mu.Unlock()

	m.store.SetConnected(false)

	m.logger.Info("connection manager stopped")
	return nil
}

// State returns the lifecycle state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerStats{
		State:         m.state,
		SessionID:     m.sessionID,
		Transport:     m.kind,
		Connects:      m.connects,
		Subscriptions: len(m.outstanding),
		Router:        m.router.Stats(),
	}
}

// loop processes transport events one at a time until the stream ends.
func (m *manager) loop(events <-chan Event, done chan struct{}) {
	defer m.loopsEnded.Add(1)
	defer close(done)

	for ev := range events {
		m.handleEvent(ev)
		m.eventsHandled.Add(1)
	}

	// Stream ended without Disconnect: context cancelled or retries exhausted.
	// A loop abandoned by a timed-out Disconnect no longer owns the state.
	m.mu.Lock()
	owner := m.loopDone == done && !m.closing
	if owner {
		m.state = StateDisconnected
		m.loopDone = nil
		clear(m.outstanding)
	}
	m.mu.Unlock()

	if owner {
		m.store.SetConnected(false)
	}
}

// handled returns the number of transport events processed so far.
func (m *manager) handled() int64 {
	return m.eventsHandled.Load()
}

func (m *manager) handleEvent(ev Event) {
	switch ev.Kind {
	case EventConnect:
		m.onConnect(ev)

	case EventDisconnect:
		m.mu.Lock()
		m.state = StateReconnecting
		m.sessionID = ""
		clear(m.outstanding)
		m.mu.Unlock()

		m.store.SetConnected(false)

	case EventConnectError:
		m.store.SetError(errorMessage(ev.Err))

	case EventReconnectFailed:
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()

		m.store.SetError(errorMessage(ev.Err))

	case EventMessage:
		m.onMessage(ev.Message)
	}
}

func (m *manager) onConnect(ev Event) {
	m.mu.Lock()
	m.state = StateConnected
	m.sessionID = ev.SessionID
	m.kind = ev.Transport
	m.connects++
	clear(m.outstanding)
	closing := m.closing
	m.mu.Unlock()

	m.store.SetConnected(true)
	m.store.SetError("")

	if closing {
		return
	}

	// Subscriptions do not survive a reconnect.
	for _, id := range m.subscriptions {
		if err := m.emitSubscription(id, true); err != nil {
			m.logger.Warn("subscribe failed", "id", id, "error", err)
			continue
		}
		m.mu.Lock()
		m.outstanding[id] = struct{}{}
		m.mu.Unlock()
	}

	m.logger.Debug("subscribed", "count", len(m.subscriptions), "session_id", ev.SessionID)
}

func (m *manager) onMessage(msg TimestampedMessage) {
	snaps, err := m.router.Route(msg.Frame())
	if err != nil {
		m.logger.Warn("dropping malformed payload", "error", err, "bytes", len(msg.Data))
		return
	}

	for _, snap := range snaps {
		m.store.Upsert(snap)
	}
}

// emitSubscription sends a subscribe or unsubscribe envelope for id.
func (m *manager) emitSubscription(id string, subscribe bool) error {
	data, err := subscriptionEnvelope(m.cfg.Dialect, id, subscribe)
	if err != nil {
		return err
	}
	return m.transport.Send(data)
}

// subscriptionEnvelope encodes the outbound event for dialect.
func subscriptionEnvelope(dialect Dialect, id string, subscribe bool) ([]byte, error) {
	var (
		event   string
		payload any
	)

	switch dialect {
	case DialectLegacy:
		event = eventUnsubscribeLegacy
		if subscribe {
			event = eventSubscribeLegacy
		}
		payload = legacySubscriptionWire{Plate: id}
	default:
		event = eventUnsubscribe
		if subscribe {
			event = eventSubscribe
		}
		payload = subscriptionWire{ID: id}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(router.Envelope{Event: event, Data: data})
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown transport error"
	}
	return err.Error()
}

// WithSession connects mgr, runs fn and always disconnects, whichever way fn
// returns. A context.Canceled result from fn counts as a clean exit.
func WithSession(ctx context.Context, mgr Manager, fn func(ctx context.Context) error) (err error) {
	if err := mgr.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultManagerConfig().ShutdownWait)
		defer cancel()
		if derr := mgr.Disconnect(stopCtx); derr != nil && err == nil {
			err = derr
		}
	}()

	err = fn(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

package store

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/fleet-tracker/internal/model"
)

// ChangeKind names the mutation that produced a notification.
type ChangeKind string

const (
	ChangeUpsert    ChangeKind = "upsert"
	ChangeSelect    ChangeKind = "select"
	ChangeConnected ChangeKind = "connected"
	ChangeError     ChangeKind = "error"
	// ChangeInitial is the replay of the current state delivered by Observe.
	ChangeInitial ChangeKind = "initial"
)

// Change describes a single store mutation.
type Change struct {
	Kind ChangeKind
	ID   string // Entity ID for upsert/select, empty otherwise
}

// Listener observes store changes. It runs on the mutating goroutine and must
// not mutate the store itself.
type Listener func(State, Change)

// State is a point-in-time copy of the store. An empty SelectedID or LastError
// means none.
type State struct {
	Entities   map[string]model.Snapshot
	SelectedID string
	Connected  bool
	LastError  string
}

// Count returns the number of known entities.
func (s State) Count() int {
	return len(s.Entities)
}

// Selected returns the selected entity, if it is still present.
func (s State) Selected() (model.Snapshot, bool) {
	if s.SelectedID == "" {
		return model.Snapshot{}, false
	}
	snap, ok := s.Entities[s.SelectedID]
	return snap, ok
}

// SortedIDs returns entity IDs in lexical order.
func (s State) SortedIDs() []string {
	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Options configures a Store.
type Options struct {
	// RejectStale drops upserts older than the stored snapshot's ObservedAt.
	RejectStale bool
}

// Store is the keyed entity map plus connection status and selection.
type Store struct {
	opts   Options
	logger *slog.Logger

	mu         sync.RWMutex
	entities   map[string]model.Snapshot
	selectedID string
	connected  bool
	lastError  string

	// Serializes mutate+notify so listeners observe changes in order.
	notifyMu  sync.Mutex
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

// New creates an empty Store.
func New(opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		opts:     opts,
		logger:   logger,
		entities: make(map[string]model.Snapshot),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	entities := make(map[string]model.Snapshot, len(s.entities))
	for id, snap := range s.entities {
		entities[id] = snap
	}
	return State{
		Entities:   entities,
		SelectedID: s.selectedID,
		Connected:  s.connected,
		LastError:  s.lastError,
	}
}

// Subscribe registers a listener. Listeners run in registration order.
// The returned function removes the listener.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Observe registers fn like Subscribe and immediately calls it with the
// current state and a ChangeInitial change. Registration and replay happen
// under the notification lock, so no mutation can be delivered before the
// replay or be missed between the two.
func (s *Store) Observe(fn Listener) (cancel func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	cancel = s.Subscribe(fn)
	fn(s.State(), Change{Kind: ChangeInitial})
	return cancel
}

// Upsert inserts or fully replaces the snapshot at snap.ID. It reports whether
// the store changed.
func (s *Store) Upsert(snap model.Snapshot) bool {
	return s.mutate(Change{Kind: ChangeUpsert, ID: snap.ID}, func() bool {
		existing, ok := s.entities[snap.ID]
		if ok {
			if existing.Equal(snap) {
				return false
			}
			if s.opts.RejectStale && snap.ObservedAt.Before(existing.ObservedAt) {
				s.logger.Debug("dropping stale snapshot",
					"id", snap.ID,
					"observed_at", snap.ObservedAt,
					"stored_at", existing.ObservedAt,
				)
				return false
			}
		}
		s.entities[snap.ID] = snap
		return true
	})
}

// Select sets the selected entity. An empty id clears the selection. The id
// does not need to exist in the entity map.
func (s *Store) Select(id string) {
	s.mutate(Change{Kind: ChangeSelect, ID: id}, func() bool {
		if s.selectedID == id {
			return false
		}
		s.selectedID = id
		return true
	})
}

// SetConnected records the transport connection status.
func (s *Store) SetConnected(connected bool) {
	s.mutate(Change{Kind: ChangeConnected}, func() bool {
		if s.connected == connected {
			return false
		}
		s.connected = connected
		return true
	})
}

// SetError records the last transport error. An empty message clears it.
func (s *Store) SetError(msg string) {
	s.mutate(Change{Kind: ChangeError}, func() bool {
		if s.lastError == msg {
			return false
		}
		s.lastError = msg
		return true
	})
}

// mutate applies fn under the write lock and, if it changed anything, calls
// every listener with the resulting state before returning.
func (s *Store) mutate(change Change, fn func() bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := fn()
	if !changed {
		s.mu.Unlock()
		return false
	}
	state := s.stateLocked()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(state, change)
	}
	return true
}

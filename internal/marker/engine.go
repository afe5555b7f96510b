package marker

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/fleet-tracker/internal/model"
	"github.com/rickgao/fleet-tracker/internal/store"
)

// PassStats summarizes one reconciliation pass.
type PassStats struct {
	Added     int
	Updated   int
	Removed   int
	OpenPopup string // Entity whose popup is visible, empty if none
}

// record is the visual-object state for one entity.
type record struct {
	snap     model.Snapshot
	marker   Marker
	popup    Popup
	selected bool

	popupOpen bool
	popupAt   model.Position
}

// Engine keeps a Surface in sync with store state. It exclusively owns every
// marker and popup it creates.
type Engine struct {
	surface  Surface
	selector Selector
	logger   *slog.Logger

	mu      sync.Mutex
	records map[string]*record
	cancel  func()
	closed  bool
}

// NewEngine creates an Engine that draws on surface and routes clicks and
// popup dismissals to selector.
func NewEngine(surface Surface, selector Selector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		surface:  surface,
		selector: selector,
		logger:   logger,
		records:  make(map[string]*record),
	}

	surface.OnBackgroundClick(func() {
		e.selector.Select("")
	})

	return e
}

// Attach subscribes the engine to st and reconciles the current state once.
// The initial pass is ordered with the store's notifications, so it never
// runs on a state older than one already applied.
func (e *Engine) Attach(st *store.Store) {
	cancel := st.Observe(func(state store.State, _ store.Change) {
		e.Reconcile(state)
	})

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
}

// Len returns the number of rendered entities.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// Reconcile applies state to the surface.
func (e *Engine) Reconcile(state store.State) PassStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats PassStats
	if e.closed {
		return stats
	}

	// Additions and updates.
	for _, id := range state.SortedIDs() {
		snap := state.Entities[id]
		rec, ok := e.records[id]

		switch {
		case !ok:
			rec = e.create(snap)
			e.records[id] = rec
			stats.Added++

		case !rec.snap.Equal(snap):
			rec.marker.SetPosition(snap.Position)
			rec.marker.SetRotation(snap.Heading)
			rec.popup.SetContent(e.render(snap))
			rec.snap = snap
			stats.Updated++
		}

		selected := state.SelectedID == id
		if rec.selected != selected {
			rec.marker.SetSelected(selected)
			rec.selected = selected
		}
	}

	// Removals, against the same state the updates used.
	for _, id := range e.sortedRecordIDs() {
		if _, ok := state.Entities[id]; ok {
			continue
		}
		rec := e.records[id]
		rec.popup.Remove()
		rec.marker.Remove()
		delete(e.records, id)
		stats.Removed++
	}

	// At most one popup, bound to the selection.
	for _, id := range e.sortedRecordIDs() {
		rec := e.records[id]
		if id == state.SelectedID {
			if !rec.popupOpen || rec.popupAt != rec.snap.Position {
				rec.popup.Show(rec.snap.Position)
				rec.popupOpen = true
				rec.popupAt = rec.snap.Position
			}
			stats.OpenPopup = id
			continue
		}
		if rec.popupOpen {
			rec.popup.Hide()
			rec.popupOpen = false
		}
	}

	if state.SelectedID != "" && stats.OpenPopup == "" {
		e.logger.Debug("selection has no entity", "id", state.SelectedID)
	}

	e.logger.Debug("reconciled",
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"rendered", len(e.records),
		"popup", stats.OpenPopup,
	)

	return stats
}

// Close detaches from the store and removes every visual object.
func (e *Engine) Close() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.closed = true
	records := e.records
	e.records = make(map[string]*record)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	for _, rec := range records {
		rec.popup.Remove()
		rec.marker.Remove()
	}
}

func (e *Engine) create(snap model.Snapshot) *record {
	id := snap.ID
	marker := e.surface.AddMarker(id, snap.Position, func(in *Interaction) {
		in.StopPropagation()
		e.selector.Select(id)
	})
	marker.SetRotation(snap.Heading)

	popup := e.surface.NewPopup(e.render(snap), func() {
		e.selector.Select("")
	})

	return &record{
		snap:   snap,
		marker: marker,
		popup:  popup,
	}
}

func (e *Engine) render(snap model.Snapshot) string {
	content, err := RenderPopup(snap)
	if err != nil {
		e.logger.Warn("popup render failed", "id", snap.ID, "error", err)
		return ""
	}
	return content
}

func (e *Engine) sortedRecordIDs() []string {
	ids := make([]string, 0, len(e.records))
	for id := range e.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

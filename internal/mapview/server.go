package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/fleet-tracker/internal/connection"
	"github.com/rickgao/fleet-tracker/internal/model"
	"github.com/rickgao/fleet-tracker/internal/store"
)

// EntityLine is one row of the debug panel.
type EntityLine struct {
	ID         string    `json:"id"`
	Line       string    `json:"line"` // "moving - 40 km/h"
	Status     string    `json:"status"`
	Speed      float64   `json:"speed"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    float64   `json:"heading"`
	ObservedAt time.Time `json:"observedAt"`
}

// StateResponse is the debug panel payload.
type StateResponse struct {
	Connected    bool                     `json:"connected"`
	EntityCount  int                      `json:"entityCount"`
	LastError    string                   `json:"lastError,omitempty"`
	SelectedID   string                   `json:"selectedId,omitempty"`
	AverageSpeed string                   `json:"averageSpeed"`
	Entities     []EntityLine             `json:"entities"`
	Connection   *connection.ManagerStats `json:"connection,omitempty"`
}

// Handler serves the presentation API.
type Handler struct {
	store  *store.Store
	view   *View
	mgr    connection.Manager
	hub    *Hub
	logger *slog.Logger
	mux    *http.ServeMux

	dirty       chan struct{}
	unsubscribe func()
}

// NewHandler wires the routes. mgr may be nil.
func NewHandler(st *store.Store, view *View, mgr connection.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		store:  st,
		view:   view,
		mgr:    mgr,
		hub:    NewHub(logger.With("component", "hub")),
		logger: logger,
		mux:    http.NewServeMux(),
		dirty:  make(chan struct{}, 1),
	}

	h.mux.HandleFunc("GET /api/health", h.handleHealth)
	h.mux.HandleFunc("GET /api/state", h.handleState)
	h.mux.HandleFunc("GET /api/markers", h.handleMarkers)
	h.mux.HandleFunc("POST /api/markers/{id}/click", h.handleMarkerClick)
	h.mux.HandleFunc("POST /api/map/click", h.handleMapClick)
	h.mux.HandleFunc("POST /api/popup/close", h.handlePopupClose)
	h.mux.HandleFunc("GET /ws", h.handleWS)

	h.unsubscribe = st.Subscribe(func(store.State, store.Change) {
		select {
		case h.dirty <- struct{}{}:
		default:
		}
	})

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("http request", "method", r.Method, "path", r.URL.Path)
	h.mux.ServeHTTP(w, r)
}

// Run pushes the GeoJSON rendering to websocket clients after every store
// change until ctx is done. Bursts of changes are coalesced.
func (h *Handler) Run(ctx context.Context) error {
	defer h.unsubscribe()
	defer h.hub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.dirty:
			data, err := h.geoJSON()
			if err != nil {
				h.logger.Warn("geojson render failed", "error", err)
				continue
			}
			h.hub.Broadcast(data)
		}
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func (h *Handler) handleMarkers(w http.ResponseWriter, r *http.Request) {
	data, err := h.geoJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (h *Handler) handleMarkerClick(w http.ResponseWriter, r *http.Request) {
	if err := h.view.Click(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMapClick(w http.ResponseWriter, r *http.Request) {
	h.view.ClickBackground()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePopupClose(w http.ResponseWriter, r *http.Request) {
	if err := h.view.ClosePopup(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	data, err := h.geoJSON()
	if err != nil {
		h.logger.Warn("geojson render failed", "error", err)
		data = nil
	}
	h.hub.ServeWS(w, r, data)
}

func (h *Handler) geoJSON() ([]byte, error) {
	return h.view.FeatureCollection(h.store.State()).MarshalJSON()
}

func (h *Handler) stateResponse() StateResponse {
	state := h.store.State()

	resp := StateResponse{
		Connected:   state.Connected,
		EntityCount: state.Count(),
		LastError:   state.LastError,
		SelectedID:  state.SelectedID,
		Entities:    make([]EntityLine, 0, state.Count()),
	}

	var total float64
	for _, id := range state.SortedIDs() {
		snap := state.Entities[id]
		total += snap.Speed
		resp.Entities = append(resp.Entities, EntityLine{
			ID:         id,
			Line:       string(snap.Status) + " - " + model.FormatSpeed(snap.Speed),
			Status:     string(snap.Status),
			Speed:      snap.Speed,
			Lat:        snap.Position.Lat,
			Lng:        snap.Position.Lng,
			Heading:    snap.Heading,
			ObservedAt: snap.ObservedAt,
		})
	}

	avg := 0.0
	if n := state.Count(); n > 0 {
		avg = total / float64(n)
	}
	resp.AverageSpeed = model.FormatSpeed(avg)

	if h.mgr != nil {
		stats := h.mgr.Stats()
		resp.Connection = &stats
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownMarker), errors.Is(err, ErrNoPopup):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

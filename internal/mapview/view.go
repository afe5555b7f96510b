package mapview

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"

	"github.com/rickgao/fleet-tracker/internal/marker"
	"github.com/rickgao/fleet-tracker/internal/model"
	"github.com/rickgao/fleet-tracker/internal/store"
)

// Errors
var (
	ErrUnknownMarker = errors.New("unknown marker")
	ErrNoPopup       = errors.New("no popup open")
)

// View is an in-memory marker.Surface.
type View struct {
	mu         sync.Mutex
	markers    map[string]*viewMarker // handle -> marker
	popups     map[string]*viewPopup  // handle -> popup
	background func()
}

// NewView creates an empty View.
func NewView() *View {
	return &View{
		markers: make(map[string]*viewMarker),
		popups:  make(map[string]*viewPopup),
	}
}

type viewMarker struct {
	view     *View
	handle   string
	id       string
	pos      model.Position
	rotation float64
	selected bool
	onClick  func(*marker.Interaction)
}

type viewPopup struct {
	view    *View
	handle  string
	content string
	visible bool
	at      model.Position
	onClose func()
}

// MarkerInfo is a read-only copy of a rendered marker.
type MarkerInfo struct {
	Handle   string
	ID       string
	Position model.Position
	Rotation float64
	Selected bool
}

// PopupInfo is a read-only copy of a rendered popup.
type PopupInfo struct {
	Handle   string
	Content  string
	Visible  bool
	Position model.Position
}

// AddMarker implements marker.Surface.
func (v *View) AddMarker(id string, pos model.Position, onClick func(*marker.Interaction)) marker.Marker {
	m := &viewMarker{
		view:    v,
		handle:  uuid.NewString(),
		id:      id,
		pos:     pos,
		onClick: onClick,
	}

	v.mu.Lock()
	v.markers[m.handle] = m
	v.mu.Unlock()

	return m
}

// NewPopup implements marker.Surface.
func (v *View) NewPopup(content string, onClose func()) marker.Popup {
	p := &viewPopup{
		view:    v,
		handle:  uuid.NewString(),
		content: content,
		onClose: onClose,
	}

	v.mu.Lock()
	v.popups[p.handle] = p
	v.mu.Unlock()

	return p
}

// OnBackgroundClick implements marker.Surface.
func (v *View) OnBackgroundClick(fn func()) {
	v.mu.Lock()
	v.background = fn
	v.mu.Unlock()
}

// Click simulates a user click on the marker for entity id. A click the
// marker handler does not stop falls through to the background handler.
func (v *View) Click(id string) error {
	v.mu.Lock()
	var onClick func(*marker.Interaction)
	for _, m := range v.markers {
		if m.id == id {
			onClick = m.onClick
			break
		}
	}
	background := v.background
	v.mu.Unlock()

	if onClick == nil {
		return ErrUnknownMarker
	}

	// Handlers may re-enter the view through store notifications, so no
	// lock is held here.
	in := &marker.Interaction{}
	onClick(in)
	if !in.Stopped() && background != nil {
		background()
	}
	return nil
}

// ClickBackground simulates a click on empty map.
func (v *View) ClickBackground() {
	v.mu.Lock()
	background := v.background
	v.mu.Unlock()

	if background != nil {
		background()
	}
}

// ClosePopup simulates the user dismissing the open popup.
func (v *View) ClosePopup() error {
	v.mu.Lock()
	var onClose func()
	for _, p := range v.popups {
		if p.visible {
			onClose = p.onClose
			break
		}
	}
	v.mu.Unlock()

	if onClose == nil {
		return ErrNoPopup
	}
	onClose()
	return nil
}

// Markers returns the rendered markers sorted by entity id.
func (v *View) Markers() []MarkerInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]MarkerInfo, 0, len(v.markers))
	for _, m := range v.markers {
		out = append(out, MarkerInfo{
			Handle:   m.handle,
			ID:       m.id,
			Position: m.pos,
			Rotation: m.rotation,
			Selected: m.selected,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Popups returns every live popup, visible or not.
func (v *View) Popups() []PopupInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]PopupInfo, 0, len(v.popups))
	for _, p := range v.popups {
		out = append(out, PopupInfo{
			Handle:   p.handle,
			Content:  p.content,
			Visible:  p.visible,
			Position: p.at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// OpenPopup returns the visible popup, if any.
func (v *View) OpenPopup() (PopupInfo, bool) {
	for _, p := range v.Popups() {
		if p.Visible {
			return p, true
		}
	}
	return PopupInfo{}, false
}

// FeatureCollection renders markers as Point features and the open popup as a
// "popup" feature. Status and speed are joined from state by entity id.
func (v *View) FeatureCollection(state store.State) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range v.Markers() {
		f := geojson.NewPointFeature([]float64{m.Position.Lng, m.Position.Lat})
		f.ID = m.ID
		f.SetProperty("kind", "marker")
		f.SetProperty("rotation", m.Rotation)
		f.SetProperty("selected", m.Selected)
		if snap, ok := state.Entities[m.ID]; ok {
			f.SetProperty("status", string(snap.Status))
			f.SetProperty("statusClass", snap.Status.Class())
			f.SetProperty("speed", model.FormatSpeed(snap.Speed))
		}
		fc.AddFeature(f)
	}

	if p, ok := v.OpenPopup(); ok {
		f := geojson.NewPointFeature([]float64{p.Position.Lng, p.Position.Lat})
		f.SetProperty("kind", "popup")
		f.SetProperty("selectedId", state.SelectedID)
		f.SetProperty("content", p.Content)
		fc.AddFeature(f)
	}

	return fc
}

func (m *viewMarker) SetPosition(pos model.Position) {
	m.view.mu.Lock()
	m.pos = pos
	m.view.mu.Unlock()
}

func (m *viewMarker) SetRotation(deg float64) {
	m.view.mu.Lock()
	m.rotation = deg
	m.view.mu.Unlock()
}

func (m *viewMarker) SetSelected(selected bool) {
	m.view.mu.Lock()
	m.selected = selected
	m.view.mu.Unlock()
}

func (m *viewMarker) Remove() {
	m.view.mu.Lock()
	delete(m.view.markers, m.handle)
	m.view.mu.Unlock()
}

func (p *viewPopup) SetContent(content string) {
	p.view.mu.Lock()
	p.content = content
	p.view.mu.Unlock()
}

func (p *viewPopup) Show(pos model.Position) {
	p.view.mu.Lock()
	p.visible = true
	p.at = pos
	p.view.mu.Unlock()
}

func (p *viewPopup) Hide() {
	p.view.mu.Lock()
	p.visible = false
	p.view.mu.Unlock()
}

func (p *viewPopup) Remove() {
	p.view.mu.Lock()
	delete(p.view.popups, p.handle)
	p.view.mu.Unlock()
}

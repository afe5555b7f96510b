package marker

import "github.com/rickgao/fleet-tracker/internal/model"

// Interaction is passed to a marker click handler. Calling StopPropagation
// keeps the click from reaching the background handler.
type Interaction struct {
	stopped bool
}

// StopPropagation marks the interaction as handled.
func (i *Interaction) StopPropagation() {
	i.stopped = true
}

// Stopped reports whether StopPropagation was called.
func (i *Interaction) Stopped() bool {
	return i.stopped
}

// Surface creates visual objects on a map.
type Surface interface {
	// AddMarker places a marker. onClick runs when the user clicks it.
	AddMarker(id string, pos model.Position, onClick func(*Interaction)) Marker

	// NewPopup creates a hidden popup. onClose runs when the user dismisses
	// it, never when Hide is called.
	NewPopup(content string, onClose func()) Popup

	// OnBackgroundClick registers the handler for clicks that no marker
	// stopped.
	OnBackgroundClick(fn func())
}

// Marker is a rendered marker handle.
type Marker interface {
	SetPosition(pos model.Position)
	SetRotation(deg float64)
	SetSelected(selected bool)
	Remove()
}

// Popup is a rendered popup handle.
type Popup interface {
	SetContent(content string)
	Show(pos model.Position)
	Hide()
	Remove()
}

// Selector receives selection changes. *store.Store satisfies it.
type Selector interface {
	Select(id string)
}

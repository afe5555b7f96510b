package model

import (
	"fmt"
	"math"
	"time"
)

// Status is the motion state reported for an entity.
type Status string

const (
	StatusMoving  Status = "moving"
	StatusIdle    Status = "idle"
	StatusStopped Status = "stopped"
)

// ParseStatus converts a wire value to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusMoving, StatusIdle, StatusStopped:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Class returns the display class used when rendering the status.
func (s Status) Class() string {
	switch s {
	case StatusMoving:
		return "text-green-600"
	case StatusIdle:
		return "text-yellow-600"
	default:
		return "text-red-600"
	}
}

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64
	Lng float64
}

// Snapshot is the latest known state of one entity. A newer snapshot for the
// same ID replaces the previous one entirely.
type Snapshot struct {
	ID         string    // Entity identifier (e.g. "DXB-CX-36357")
	Position   Position  // Last reported position
	Heading    float64   // Degrees in [0, 360)
	Speed      float64   // km/h
	Status     Status    // moving, idle or stopped
	ObservedAt time.Time // When the source observed this state
}

// Equal reports whether two snapshots carry identical fields.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.ID == o.ID &&
		s.Position == o.Position &&
		s.Heading == o.Heading &&
		s.Speed == o.Speed &&
		s.Status == o.Status &&
		s.ObservedAt.Equal(o.ObservedAt)
}

// NormalizeHeading folds any angle into [0, 360).
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// FormatSpeed renders a speed for display, "-- km/h" when unknown or zero.
func FormatSpeed(kmh float64) string {
	if kmh <= 0 || math.IsNaN(kmh) {
		return "-- km/h"
	}
	return fmt.Sprintf("%d km/h", int64(math.Round(kmh)))
}

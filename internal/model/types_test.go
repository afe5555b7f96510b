package model

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"moving", StatusMoving, false},
		{"idle", StatusIdle, false},
		{"stopped", StatusStopped, false},
		{"Moving", "", true},
		{"parked", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	if got := StatusMoving.Class(); got != "text-green-600" {
		t.Errorf("moving class = %q", got)
	}
	if got := StatusIdle.Class(); got != "text-yellow-600" {
		t.Errorf("idle class = %q", got)
	}
	if got := StatusStopped.Class(); got != "text-red-600" {
		t.Errorf("stopped class = %q", got)
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{90, 90},
		{359.5, 359.5},
		{360, 0},
		{450, 90},
		{-90, 270},
		{-720, 0},
	}

	for _, tt := range tests {
		if got := NormalizeHeading(tt.in); got != tt.want {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "-- km/h"},
		{-3, "-- km/h"},
		{40, "40 km/h"},
		{39.6, "40 km/h"},
		{12.2, "12 km/h"},
	}

	for _, tt := range tests {
		if got := FormatSpeed(tt.in); got != tt.want {
			t.Errorf("FormatSpeed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSnapshotEqual(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Snapshot{
		ID:         "A-1",
		Position:   Position{Lat: 25.0, Lng: 55.0},
		Heading:    90,
		Speed:      40,
		Status:     StatusMoving,
		ObservedAt: t0,
	}

	b := a
	b.ObservedAt = t0.In(time.FixedZone("GST", 4*3600))
	if !a.Equal(b) {
		t.Error("expected snapshots with the same instant in different zones to be equal")
	}

	c := a
	c.Status = StatusStopped
	if a.Equal(c) {
		t.Error("expected snapshots with different status to differ")
	}
}

package router

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrMalformedPayload = errors.New("malformed payload")
)

// Inbound event names.
const (
	EventEntityUpdate = "entityUpdate"
	EventVehicleData  = "vehicleData"
	EventError        = "error"
)

// Envelope is the JSON framing for every text message in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is one message as received from the transport.
type Frame struct {
	Data       []byte    // Raw frame bytes
	Binary     bool      // True for binary (GTFS-RT) frames
	ReceivedAt time.Time // Local timestamp when the transport read the frame
}

// RouterStats contains decode statistics.
type RouterStats struct {
	FramesReceived   int64
	SnapshotsDecoded int64
	ParseErrors      int64
	UnknownEvents    int64
	ServerErrors     int64
}

// entityUpdateWire is the entityUpdate payload.
type entityUpdateWire struct {
	ID         string        `json:"id" validate:"required"`
	Position   *positionWire `json:"position" validate:"required"`
	Heading    *float64      `json:"heading" validate:"required"`
	Speed      *float64      `json:"speed" validate:"required,gte=0"`
	Status     string        `json:"status" validate:"required,oneof=moving idle stopped"`
	ObservedAt string        `json:"observedAt" validate:"required"`
}

type positionWire struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// vehicleDataWire is the legacy vehicleData payload.
type vehicleDataWire struct {
	Plate string           `json:"plate" validate:"required"`
	Data  *vehicleDataBody `json:"data" validate:"required"`
}

type vehicleDataBody struct {
	Lat       *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng       *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Angle     *float64 `json:"angle" validate:"required"`
	Speed     *float64 `json:"speed" validate:"required,gte=0"`
	Status    string   `json:"status" validate:"required,oneof=moving idle stopped"`
	Timestamp string   `json:"timestamp"`
}

// serverErrorWire is the payload of an error event.
type serverErrorWire struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

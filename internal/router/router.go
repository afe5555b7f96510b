package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/proto"

	"github.com/rickgao/fleet-tracker/internal/model"
)

// metersPerSecondToKmh converts GTFS-RT speeds to the km/h used by snapshots.
const metersPerSecondToKmh = 3.6

// movingThresholdKmh is the speed above which a GTFS-RT vehicle counts as moving.
const movingThresholdKmh = 1.0

// Router decodes frames into snapshots. It is safe for concurrent use.
type Router struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu    sync.Mutex
	stats RouterStats
}

// NewRouter creates a new Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		validate: validator.New(),
	}
}

// Stats returns current decode statistics.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Route decodes a single frame. Control events yield no snapshots and no error.
// A malformed frame yields an error wrapping ErrMalformedPayload and no snapshots.
func (r *Router) Route(frame Frame) ([]model.Snapshot, error) {
	r.count(func(s *RouterStats) { s.FramesReceived++ })

	var (
		snaps []model.Snapshot
		err   error
	)
	if frame.Binary {
		snaps, err = r.decodeFeed(frame)
	} else {
		snaps, err = r.decodeEnvelope(frame)
	}

	if err != nil {
		r.count(func(s *RouterStats) { s.ParseErrors++ })
		return nil, err
	}

	r.count(func(s *RouterStats) { s.SnapshotsDecoded += int64(len(snaps)) })
	return snaps, nil
}

func (r *Router) count(fn func(*RouterStats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

// decodeEnvelope parses a JSON text frame.
func (r *Router) decodeEnvelope(frame Frame) ([]model.Snapshot, error) {
	var env Envelope
	if err := json.Unmarshal(frame.Data, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformedPayload, err)
	}

	switch env.Event {
	case EventEntityUpdate:
		snap, err := r.decodeEntityUpdate(env.Data)
		if err != nil {
			return nil, err
		}
		return []model.Snapshot{snap}, nil

	case EventVehicleData:
		snap, err := r.decodeVehicleData(env.Data, frame.ReceivedAt)
		if err != nil {
			return nil, err
		}
		return []model.Snapshot{snap}, nil

	case EventError:
		var se serverErrorWire
		_ = json.Unmarshal(env.Data, &se)
		r.count(func(s *RouterStats) { s.ServerErrors++ })
		r.logger.Warn("server reported error", "code", se.Code, "message", se.Message)
		return nil, nil

	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedPayload)

	default:
		r.count(func(s *RouterStats) { s.UnknownEvents++ })
		r.logger.Debug("skipping event", "event", env.Event)
		return nil, nil
	}
}

// decodeEntityUpdate parses and validates an entityUpdate payload.
func (r *Router) decodeEntityUpdate(data json.RawMessage) (model.Snapshot, error) {
	var wire entityUpdateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, EventEntityUpdate, err)
	}
	if err := r.validate.Struct(wire); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, EventEntityUpdate, err)
	}

	observedAt, err := parseTimestamp(wire.ObservedAt)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, EventEntityUpdate, err)
	}

	return model.Snapshot{
		ID:         wire.ID,
		Position:   model.Position{Lat: *wire.Position.Lat, Lng: *wire.Position.Lng},
		Heading:    model.NormalizeHeading(*wire.Heading),
		Speed:      *wire.Speed,
		Status:     model.Status(wire.Status),
		ObservedAt: observedAt,
	}, nil
}

// decodeVehicleData parses and validates a legacy vehicleData payload. An
// unparseable timestamp falls back to receivedAt.
func (r *Router) decodeVehicleData(data json.RawMessage, receivedAt time.Time) (model.Snapshot, error) {
	var wire vehicleDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, EventVehicleData, err)
	}
	if err := r.validate.Struct(wire); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, EventVehicleData, err)
	}

	observedAt, err := parseTimestamp(wire.Data.Timestamp)
	if err != nil {
		r.logger.Debug("vehicleData timestamp unparsed, using receive time",
			"plate", wire.Plate, "timestamp", wire.Data.Timestamp)
		observedAt = receivedAt.UTC()
	}

	return model.Snapshot{
		ID:         wire.Plate,
		Position:   model.Position{Lat: *wire.Data.Lat, Lng: *wire.Data.Lng},
		Heading:    model.NormalizeHeading(*wire.Data.Angle),
		Speed:      *wire.Data.Speed,
		Status:     model.Status(wire.Data.Status),
		ObservedAt: observedAt,
	}, nil
}

// decodeFeed parses a binary GTFS-RT FeedMessage.
func (r *Router) decodeFeed(frame Frame) ([]model.Snapshot, error) {
	var feed gtfs.FeedMessage
	if err := proto.Unmarshal(frame.Data, &feed); err != nil {
		return nil, fmt.Errorf("%w: gtfs-rt: %v", ErrMalformedPayload, err)
	}

	headerTS := feed.GetHeader().GetTimestamp()
	snaps := make([]model.Snapshot, 0, len(feed.GetEntity()))
	skipped := 0

	for _, ent := range feed.GetEntity() {
		vp := ent.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}

		id := vp.GetVehicle().GetId()
		if id == "" {
			id = vp.GetVehicle().GetLicensePlate()
		}
		if id == "" {
			skipped++
			continue
		}

		pos := vp.GetPosition()
		speed := float64(pos.GetSpeed()) * metersPerSecondToKmh

		status := model.StatusIdle
		switch {
		case vp.GetCurrentStatus() == gtfs.VehiclePosition_STOPPED_AT:
			status = model.StatusStopped
		case speed > movingThresholdKmh:
			status = model.StatusMoving
		}

		observedAt := frame.ReceivedAt.UTC()
		if ts := vp.GetTimestamp(); ts > 0 {
			observedAt = time.Unix(int64(ts), 0).UTC()
		} else if headerTS > 0 {
			observedAt = time.Unix(int64(headerTS), 0).UTC()
		}

		snaps = append(snaps, model.Snapshot{
			ID:         id,
			Position:   model.Position{Lat: float64(pos.GetLatitude()), Lng: float64(pos.GetLongitude())},
			Heading:    model.NormalizeHeading(float64(pos.GetBearing())),
			Speed:      speed,
			Status:     status,
			ObservedAt: observedAt,
		})
	}

	if skipped > 0 {
		r.logger.Debug("skipped gtfs-rt vehicles without id", "count", skipped)
	}

	return snaps, nil
}

// timestampLayouts are the ISO-8601 forms accepted for observedAt, tried in
// order. Zone-less timestamps are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
}

// parseTimestamp parses an ISO-8601 timestamp.
func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("observedAt: %w", firstErr)
}

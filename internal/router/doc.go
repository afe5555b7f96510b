// Package router decodes inbound transport frames into entity snapshots.
//
// Text frames carry a JSON envelope {"event": ..., "data": ...}:
//   - entityUpdate: {id, position{lat,lng}, heading, speed, status, observedAt}
//   - vehicleData: legacy {plate, data{lat,lng,angle,speed,status,timestamp}}
//   - error: server-side error notice (logged)
//
// Binary frames carry a GTFS-Realtime FeedMessage; every VehiclePosition
// entity becomes one snapshot.
//
// Frames that fail to decode or validate are rejected with ErrMalformedPayload
// and never produce a partial snapshot.
package router

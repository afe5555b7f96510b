// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one transport session (websocket, falling back to HTTP long-polling)
//   - Handles reconnection with capped exponential backoff
//   - Re-subscribes the static subscription set after every (re)connect
//   - Decodes inbound frames and upserts snapshots into the Entity Store
//   - Mirrors connection status and the last transport error into the store
package connection

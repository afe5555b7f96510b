// Package store implements the Entity Store component.
//
// The Entity Store:
//   - Holds the latest snapshot per entity ID
//   - Tracks the selected entity, connection status and last transport error
//   - Notifies listeners synchronously, before a mutating call returns
//   - Is the only place shared state may be mutated
package store

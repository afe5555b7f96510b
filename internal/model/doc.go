// Package model defines the shared data types used across the tracker.
//
// Conventions:
//   - Entity IDs: opaque strings (plate or tag numbers), stable per tracked object
//   - Positions: WGS84 degrees
//   - Headings: degrees, normalised to [0, 360)
//   - Speeds: km/h, never negative
//   - Timestamps: time.Time in UTC
package model

// Package mapview is a headless map surface and the HTTP presentation layer.
//
// View implements marker.Surface in memory. It keeps every marker and popup
// the reconciliation engine creates and replays user clicks. Handler serves
// the debug panel state, a GeoJSON rendering of the map and a websocket feed
// that pushes the GeoJSON after every store change.
package mapview

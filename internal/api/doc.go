// Package api provides the HTTP client for the long-polling session transport.
//
// Session endpoints (relative to the configured polling base URL):
//   - POST   {base}            open a session, returns {"sid": "..."}
//   - GET    {base}/{sid}      long-poll for queued events, returns {"events": [...]}
//   - POST   {base}/{sid}      emit one event envelope
//   - DELETE {base}/{sid}      close the session
//
// A 404 or 410 on a session endpoint means the server dropped the session.
package api

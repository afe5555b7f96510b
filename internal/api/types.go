package api

import "encoding/json"

// SessionResponse from POST {base}.
type SessionResponse struct {
	SID string `json:"sid"`
}

// PollResponse from GET {base}/{sid}. Each event is a raw JSON envelope.
type PollResponse struct {
	Events []json.RawMessage `json:"events"`
}

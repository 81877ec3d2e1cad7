package models

import (
	"encoding/json"
	"time"
)

// RequestEvent is the payload written to the new-requests topic once a request
// has been persisted.
type RequestEvent struct {
	CycleID     string    `json:"cycle_id"`
	Request     Request   `json:"request"`
	PublishedAt time.Time `json:"published_at"`
}

// NewRequestEvent marshals a request event payload.
func NewRequestEvent(cycleID string, req Request) ([]byte, error) {
	return json.Marshal(RequestEvent{
		CycleID:     cycleID,
		Request:     req,
		PublishedAt: time.Now().UTC(),
	})
}

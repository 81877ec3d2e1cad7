package models

import "time"

// CycleState describes where a watcher cycle ended up.
type CycleState string

const (
	CycleRunning   CycleState = "running"
	CycleCompleted CycleState = "completed"
	CycleAborted   CycleState = "aborted"
)

// CycleStatus summarises one pass over the listing page.
type CycleStatus struct {
	CycleID    string     `json:"cycle_id"`
	State      CycleState `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
	Parsed     int        `json:"parsed"`
	Known      int        `json:"known"`
	Skipped    int        `json:"skipped"`
	Inserted   int        `json:"inserted"`
	Conflicts  int        `json:"conflicts"`
	Notified   int        `json:"notified"`
	Error      string     `json:"error,omitempty"`
}

package model

import "time"

// RunStatus represents the current state of a recorded sampling run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted sampling run.
type Run struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Status    RunStatus `json:"status"`
	Params    Params    `json:"params"`
	Seed      uint64    `json:"seed"`
	Totals    *Totals   `json:"totals,omitempty"`
	Warnings  int       `json:"warnings"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCanceled
}

// Run is one calculation over the stored event log.
type Run struct {
	ID         string          `json:"id"`
	ScheduleID string          `json:"schedule_id"`
	Status     RunStatus       `json:"status"`
	Progress   float64         `json:"progress"`
	From       time.Time       `json:"from,omitempty"`
	To         time.Time       `json:"to,omitempty"`
	Config     CalcConfig      `json:"config"`
	Summary    json.RawMessage `json:"summary,omitempty" swaggertype:"object"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

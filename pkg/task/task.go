package task

import (
	"encoding/json"
	"time"
)

// Status mirrors the lifecycle states of the async core so a record can
// be reported to the control server at any point.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Record is the persisted view of one task execution.
type Record struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  Status          `json:"status"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Created time.Time       `json:"created"`
	Updated time.Time       `json:"updated"`
}

func NewRecord(id, taskType string, params json.RawMessage) *Record {
	now := time.Now()
	return &Record{
		ID:      id,
		Type:    taskType,
		Status:  StatusCreated,
		Params:  params,
		Created: now,
		Updated: now,
	}
}

func (r *Record) SetStatus(status Status) {
	r.Status = status
	r.Updated = time.Now()
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// RunStatus represents the lifecycle state of a processing run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// RunStats holds free-form per-run counters (per-stage successes, skip
// reasons, timing) as a JSON column.
type RunStats map[string]interface{}

// Value implements driver.Valuer interface for RunStats
func (s RunStats) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface for RunStats
func (s *RunStats) Scan(value interface{}) error {
	if value == nil {
		*s = make(RunStats)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, s)
}

// Run tracks one operator-initiated processing batch. The HTTP API creates
// a Run per POST /runs and the orchestrator updates it as episodes finish.
type Run struct {
	gorm.Model
	Status     RunStatus  `json:"status" gorm:"default:'running';index"`
	Mode       Mode       `json:"mode"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	Stats      RunStats   `json:"stats,omitempty" gorm:"type:json"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// TableName specifies the table name for GORM
func (Run) TableName() string {
	return "runs"
}

// IsTerminal returns true once the run can no longer change state.
func (r *Run) IsTerminal() bool {
	return r.Status == RunStatusCompleted ||
		r.Status == RunStatusCancelled ||
		r.Status == RunStatusFailed
}

// SetStat sets a stats value, allocating the map on first use.
func (r *Run) SetStat(key string, value interface{}) {
	if r.Stats == nil {
		r.Stats = make(RunStats)
	}
	r.Stats[key] = value
}

package models

import "time"

// MaxFailureRecords bounds failure retention; older rows are trimmed after
// each insert.
const MaxFailureRecords = 1000

// Failure is an append-only observability record for any per-episode error
// the pipeline swallows and moves past.
type Failure struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"column:ts;index" json:"ts"`
	Component string    `gorm:"index" json:"component"`
	Podcast   string    `json:"podcast"`
	Title     string    `json:"title"`
	ErrorKind string    `json:"error_kind"`
	ErrorMsg  string    `gorm:"type:text" json:"error_msg"`
	Retries   int       `json:"retries"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Failure) TableName() string {
	return "failures"
}

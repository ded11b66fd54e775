package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

// MaxStrategyHistory bounds the per-podcast success history.
const MaxStrategyHistory = 5

// StrategyList is an ordered MRU list of download strategy names, stored
// as a JSON array column.
type StrategyList []string

// Value implements driver.Valuer interface for StrategyList
func (s StrategyList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface for StrategyList
func (s *StrategyList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
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

// DownloadHistory records which strategies most recently produced a valid
// audio file for a podcast. The router prepends this list to its default
// chain on the next run.
type DownloadHistory struct {
	gorm.Model
	Podcast    string       `json:"podcast" gorm:"uniqueIndex;not null"`
	Strategies StrategyList `json:"strategies" gorm:"type:json"`
}

// TableName specifies the table name for GORM
func (DownloadHistory) TableName() string {
	return "download_history"
}

// RecordSuccess moves strategy to the head and bounds the list. Returns
// true when the list changed.
func (h *DownloadHistory) RecordSuccess(strategy string) bool {
	if len(h.Strategies) > 0 && h.Strategies[0] == strategy {
		return false
	}

	next := make(StrategyList, 0, len(h.Strategies)+1)
	next = append(next, strategy)
	for _, s := range h.Strategies {
		if s != strategy {
			next = append(next, s)
		}
	}
	if len(next) > MaxStrategyHistory {
		next = next[:MaxStrategyHistory]
	}
	h.Strategies = next
	return true
}

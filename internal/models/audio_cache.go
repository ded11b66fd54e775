package models

import (
	"time"

	"gorm.io/gorm"
)

// AudioCacheEntry indexes a downloaded audio file on disk. Entries power
// download reuse (a present, non-empty file is never re-downloaded in a
// run) and disk-cap eviction, which removes the oldest transcribed files
// first.
type AudioCacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Podcast   string    `gorm:"index" json:"podcast"`
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
	Mode      Mode      `json:"mode"`

	Path        string    `gorm:"uniqueIndex;not null" json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	Strategy    string    `json:"strategy"`
	Transcribed bool      `gorm:"default:false;index" json:"transcribed"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// TableName returns the table name for the AudioCacheEntry model
func (AudioCacheEntry) TableName() string {
	return "audio_cache"
}

// BeforeCreate hook to set timestamps
func (a *AudioCacheEntry) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.LastUsedAt.IsZero() {
		a.LastUsedAt = now
	}
	return nil
}

// BeforeUpdate hook to update timestamp
func (a *AudioCacheEntry) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = time.Now()
	return nil
}

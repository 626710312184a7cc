package models

import "time"

// RevertAudit records a completed branch revert. Entries are append-only and
// never updated after insert.
type RevertAudit struct {
	ID                  uint   `gorm:"primaryKey"`
	SessionID           uint   `gorm:"index"`
	CommitSHA           string `gorm:"size:64;not null"`
	TriggeringMessageID string `gorm:"size:64"`
	RevertedAt          time.Time
}

package models

import "time"

const (
	SessionStatusActive   = "active"
	SessionStatusArchived = "archived"
)

// Session is one unit of iterative work on a project. It maps 1:1 to a git
// branch and, while previewed, to a single runtime instance.
type Session struct {
	ID        uint `gorm:"primaryKey"`
	ProjectID uint `gorm:"index:idx_session_project_key,unique"`
	// SessionID is the string key used in workspace paths, branch names and
	// container names. Validated against a strict allow-list before use.
	SessionID  string `gorm:"size:64;not null;index:idx_session_project_key,unique"`
	BranchName string `gorm:"size:255;not null"`
	Status     string `gorm:"size:16;not null;default:active"`
	IsDefault  bool

	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

package models

import (
	"time"
)

type Project struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name string `gorm:"size:120"`
	// RemoteURL is the authoritative repository location. Session workspaces
	// are cloned from it and forced branch updates are pushed back to it. It
	// may be a plain filesystem path when the host mirror is local.
	RemoteURL string `gorm:"size:512;not null"`

	EnvVars  []ProjectEnvVar
	Sessions []Session
}

// ProjectEnvVar is a per-project environment variable injected into every
// runtime instance of that project's sessions. Read-only at start time.
type ProjectEnvVar struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"index:idx_env_project_key,unique"`
	Key       string `gorm:"size:120;not null;index:idx_env_project_key,unique"`
	Value     string `gorm:"type:text"`
}

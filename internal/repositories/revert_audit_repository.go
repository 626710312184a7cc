package repositories

import (
	"fmt"
	"time"

	"appdeck/internal/models"

	"gorm.io/gorm"
)

// RevertAuditRepository is append-only: entries are created once and never
// edited afterwards.
type RevertAuditRepository interface {
	Append(entry *models.RevertAudit) error
	ListBySession(sessionID uint) ([]models.RevertAudit, error)
}

type revertAuditRepository struct {
	db *gorm.DB
}

func NewRevertAuditRepository(db *gorm.DB) RevertAuditRepository {
	return &revertAuditRepository{db: db}
}

func (r *revertAuditRepository) Append(entry *models.RevertAudit) error {
	if entry == nil {
		return fmt.Errorf("audit entry is required")
	}
	if entry.SessionID == 0 {
		return fmt.Errorf("session ID is required")
	}
	if entry.CommitSHA == "" {
		return fmt.Errorf("commit SHA is required")
	}
	if entry.RevertedAt.IsZero() {
		entry.RevertedAt = time.Now()
	}
	return r.db.Create(entry).Error
}

func (r *revertAuditRepository) ListBySession(sessionID uint) ([]models.RevertAudit, error) {
	var entries []models.RevertAudit
	res := r.db.Where("session_id = ?", sessionID).Order("reverted_at asc").Find(&entries)
	if res.Error != nil {
		return nil, res.Error
	}
	return entries, nil
}

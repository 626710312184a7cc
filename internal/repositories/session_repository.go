package repositories

import (
	"errors"
	"fmt"
	"time"

	"appdeck/internal/models"

	"gorm.io/gorm"
)

type SessionRepository interface {
	GetByKey(projectID uint, sessionID string) (*models.Session, error)
	Create(session *models.Session) error
	SetBranchName(id uint, branchName string) error
	// Touch advances LastActivityAt. The update is conditional so the column
	// stays monotonically non-decreasing even under concurrent writers.
	Touch(projectID uint, sessionID string, at time.Time) error
	// ListReclaimable returns sessions whose instance should be released:
	// active sessions whose last activity is strictly before the cutoff, and
	// archived sessions regardless of activity.
	ListReclaimable(cutoff time.Time) ([]models.Session, error)
	Archive(projectID uint, sessionID string) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) GetByKey(projectID uint, sessionID string) (*models.Session, error) {
	var sess models.Session
	res := r.db.Where("project_id = ? AND session_id = ?", projectID, sessionID).Take(&sess)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &sess, nil
}

func (r *sessionRepository) Create(session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if session.ProjectID == 0 {
		return fmt.Errorf("projectID is required")
	}
	if session.SessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = time.Now()
	}
	return r.db.Create(session).Error
}

func (r *sessionRepository) SetBranchName(id uint, branchName string) error {
	if id == 0 {
		return fmt.Errorf("session ID is required")
	}
	return r.db.Model(&models.Session{}).Where("id = ?", id).
		Update("branch_name", branchName).Error
}

func (r *sessionRepository) Touch(projectID uint, sessionID string, at time.Time) error {
	return r.db.Model(&models.Session{}).
		Where("project_id = ? AND session_id = ? AND last_activity_at < ?", projectID, sessionID, at).
		Update("last_activity_at", at).Error
}

func (r *sessionRepository) ListReclaimable(cutoff time.Time) ([]models.Session, error) {
	var sessions []models.Session
	res := r.db.Where("(status = ? AND last_activity_at < ?) OR status = ?",
		models.SessionStatusActive, cutoff, models.SessionStatusArchived).
		Order("last_activity_at asc").Find(&sessions)
	if res.Error != nil {
		return nil, res.Error
	}
	return sessions, nil
}

func (r *sessionRepository) Archive(projectID uint, sessionID string) error {
	return r.db.Model(&models.Session{}).
		Where("project_id = ? AND session_id = ?", projectID, sessionID).
		Update("status", models.SessionStatusArchived).Error
}

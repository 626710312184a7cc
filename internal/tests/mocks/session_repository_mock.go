package mocks

import (
	"time"

	"appdeck/internal/models"
)

type SessionRepositoryMock struct {
	GetByKeyFunc      func(projectID uint, sessionID string) (*models.Session, error)
	CreateFunc        func(session *models.Session) error
	SetBranchNameFunc func(id uint, branchName string) error
	TouchFunc         func(projectID uint, sessionID string, at time.Time) error
	ListReclaimableFunc func(cutoff time.Time) ([]models.Session, error)
	ArchiveFunc       func(projectID uint, sessionID string) error
}

func (m *SessionRepositoryMock) GetByKey(projectID uint, sessionID string) (*models.Session, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(projectID, sessionID)
	}
	return nil, nil
}

func (m *SessionRepositoryMock) Create(session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(session)
	}
	return nil
}

func (m *SessionRepositoryMock) SetBranchName(id uint, branchName string) error {
	if m.SetBranchNameFunc != nil {
		return m.SetBranchNameFunc(id, branchName)
	}
	return nil
}

func (m *SessionRepositoryMock) Touch(projectID uint, sessionID string, at time.Time) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(projectID, sessionID, at)
	}
	return nil
}

func (m *SessionRepositoryMock) ListReclaimable(cutoff time.Time) ([]models.Session, error) {
	if m.ListReclaimableFunc != nil {
		return m.ListReclaimableFunc(cutoff)
	}
	return nil, nil
}

func (m *SessionRepositoryMock) Archive(projectID uint, sessionID string) error {
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(projectID, sessionID)
	}
	return nil
}

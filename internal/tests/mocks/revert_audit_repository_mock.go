package mocks

import (
	"appdeck/internal/models"
)

type RevertAuditRepositoryMock struct {
	AppendFunc        func(entry *models.RevertAudit) error
	ListBySessionFunc func(sessionID uint) ([]models.RevertAudit, error)
}

func (m *RevertAuditRepositoryMock) Append(entry *models.RevertAudit) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(entry)
	}
	return nil
}

func (m *RevertAuditRepositoryMock) ListBySession(sessionID uint) ([]models.RevertAudit, error) {
	if m.ListBySessionFunc != nil {
		return m.ListBySessionFunc(sessionID)
	}
	return nil, nil
}

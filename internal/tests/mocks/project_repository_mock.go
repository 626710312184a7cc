package mocks

import (
	"appdeck/internal/models"
)

type ProjectRepositoryMock struct {
	GetByIDFunc func(id uint) (*models.Project, error)
	CreateFunc  func(project *models.Project) error
	EnvVarsFunc func(projectID uint) ([]models.ProjectEnvVar, error)
}

func (m *ProjectRepositoryMock) GetByID(id uint) (*models.Project, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, nil
}

func (m *ProjectRepositoryMock) Create(project *models.Project) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(project)
	}
	return nil
}

func (m *ProjectRepositoryMock) EnvVars(projectID uint) ([]models.ProjectEnvVar, error) {
	if m.EnvVarsFunc != nil {
		return m.EnvVarsFunc(projectID)
	}
	return nil, nil
}

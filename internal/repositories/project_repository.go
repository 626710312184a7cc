package repositories

import (
	"errors"
	"fmt"

	"appdeck/internal/models"

	"gorm.io/gorm"
)

type ProjectRepository interface {
	GetByID(id uint) (*models.Project, error)
	Create(project *models.Project) error
	EnvVars(projectID uint) ([]models.ProjectEnvVar, error)
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	res := r.db.Take(&project, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &project, nil
}

func (r *projectRepository) Create(project *models.Project) error {
	if project == nil {
		return fmt.Errorf("project is required")
	}
	if project.RemoteURL == "" {
		return fmt.Errorf("remote URL is required")
	}
	return r.db.Create(project).Error
}

func (r *projectRepository) EnvVars(projectID uint) ([]models.ProjectEnvVar, error) {
	var vars []models.ProjectEnvVar
	res := r.db.Where("project_id = ?", projectID).Order("key asc").Find(&vars)
	if res.Error != nil {
		return nil, res.Error
	}
	return vars, nil
}
